package service

import (
	"errors"

	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
)

// Test session errors.
var (
	ErrAlreadySubmitted        = errors.New("test already submitted and no retake granted")
	ErrNoSavedProgress         = errors.New("no saved progress for this test")
	ErrNoDurationConfigured    = errors.New("no duration configured for this test")
	ErrNoQuestions             = errors.New("no questions available for this test")
	ErrQuestionIndexOutOfRange = model.ErrIndexOutOfRange
	ErrTimeUp                  = errors.New("time is up")
	ErrInvalidTestType         = errors.New("invalid test type")
	ErrStaleAttempt            = errors.New("request belongs to a previous attempt")
)

// TimeUpError is returned by a mutating call that found the attempt past its
// deadline. The attempt has been submitted and Result holds the outcome.
type TimeUpError struct {
	Result *model.TestResult
}

func (e *TimeUpError) Error() string { return ErrTimeUp.Error() }

// Is makes errors.Is(err, ErrTimeUp) match.
func (e *TimeUpError) Is(target error) bool { return target == ErrTimeUp }

// IsStateError reports whether err comes from the attempt's state rather than
// from infrastructure. Retrying such an error cannot succeed.
func IsStateError(err error) bool {
	for _, target := range []error{
		ErrAlreadySubmitted,
		ErrNoSavedProgress,
		ErrNoDurationConfigured,
		ErrNoQuestions,
		ErrQuestionIndexOutOfRange,
		ErrTimeUp,
		ErrInvalidTestType,
		ErrStaleAttempt,
		model.ErrAnswerCountMismatch,
		model.ErrMissingOptions,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsPermanent reports whether replaying the call that returned err can never
// succeed: a state error, or a stored attempt that cannot be decoded.
func IsPermanent(err error) bool {
	return IsStateError(err) || errors.Is(err, repository.ErrCorruptProgress)
}

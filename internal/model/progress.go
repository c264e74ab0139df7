package model

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAnswerCountMismatch is returned when answers and questions differ in length.
	ErrAnswerCountMismatch = errors.New("answers length does not match questions length")
	// ErrMissingOptions is returned when an objective question carries no options.
	ErrMissingOptions = errors.New("objective question has no options")
	// ErrIndexOutOfRange is returned for a question index outside the attempt.
	ErrIndexOutOfRange = errors.New("question index out of range")
)

// SessionQuestion is a question as frozen into a single attempt. The option
// order stored here is the order the student saw and is authoritative.
type SessionQuestion struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Marks         int      `json:"marks,omitempty"`
}

// Progress is the persisted state of one attempt.
type Progress struct {
	AttemptID       uuid.UUID         `json:"attempt_id"`
	StudentID       int64             `json:"student_id"`
	AccessCode      string            `json:"access_code"`
	SubjectID       int64             `json:"subject_id"`
	SchoolID        int64             `json:"school_id"`
	ClassName       string            `json:"class_name"`
	TestType        TestType          `json:"test_type"`
	Questions       []SessionQuestion `json:"questions"`
	Answers         []string          `json:"answers"`
	Marked          []int             `json:"marked"`
	CurrentIndex    int               `json:"current_index"`
	StartTime       time.Time         `json:"start_time"`
	DurationSeconds int               `json:"duration_seconds"`
	Submitted       bool              `json:"submitted"`
	SubmittedAt     *time.Time        `json:"submitted_at,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Key returns the identity of the row.
func (p *Progress) Key() ProgressKey {
	return ProgressKey{StudentID: p.StudentID, SubjectID: p.SubjectID, SchoolID: p.SchoolID, TestType: p.TestType}
}

// Deadline is the instant the attempt runs out of time.
func (p *Progress) Deadline() time.Time {
	return p.StartTime.Add(time.Duration(p.DurationSeconds) * time.Second)
}

// RemainingSeconds returns the whole seconds left at now, clamped at zero.
func (p *Progress) RemainingSeconds(now time.Time) int {
	left := p.Deadline().Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds())
}

// Expired reports whether the attempt has no time left at now.
func (p *Progress) Expired(now time.Time) bool {
	return !now.Before(p.Deadline())
}

// Validate checks the row invariants that must hold before every write.
func (p *Progress) Validate() error {
	if len(p.Answers) != len(p.Questions) {
		return fmt.Errorf("%w: %d answers, %d questions", ErrAnswerCountMismatch, len(p.Answers), len(p.Questions))
	}
	if p.TestType == TestTypeObjective {
		for i, q := range p.Questions {
			if len(q.Options) == 0 {
				return fmt.Errorf("question %d (id %d): %w", i, q.ID, ErrMissingOptions)
			}
		}
	}
	if len(p.Questions) > 0 && (p.CurrentIndex < 0 || p.CurrentIndex >= len(p.Questions)) {
		return fmt.Errorf("current index %d: %w", p.CurrentIndex, ErrIndexOutOfRange)
	}
	for _, m := range p.Marked {
		if m < 0 || m >= len(p.Questions) {
			return fmt.Errorf("marked index %d: %w", m, ErrIndexOutOfRange)
		}
	}
	return nil
}

// CheckIndex returns ErrIndexOutOfRange unless index addresses a question.
func (p *Progress) CheckIndex(index int) error {
	if index < 0 || index >= len(p.Questions) {
		return fmt.Errorf("index %d of %d: %w", index, len(p.Questions), ErrIndexOutOfRange)
	}
	return nil
}

// ToggleMark flips the review mark of the question at index and reports the new state.
func (p *Progress) ToggleMark(index int) bool {
	for i, m := range p.Marked {
		if m == index {
			p.Marked = append(p.Marked[:i], p.Marked[i+1:]...)
			return false
		}
	}
	p.Marked = append(p.Marked, index)
	sort.Ints(p.Marked)
	return true
}

// NormalizeMarked sorts and deduplicates a set of review marks.
func NormalizeMarked(marked []int) []int {
	if len(marked) == 0 {
		return []int{}
	}
	out := append([]int(nil), marked...)
	sort.Ints(out)
	j := 0
	for i := range out {
		if i == 0 || out[i] != out[j-1] {
			out[j] = out[i]
			j++
		}
	}
	return out[:j]
}

// QuestionView is a session question without its answer key.
type QuestionView struct {
	ID      int64    `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Marks   int      `json:"marks,omitempty"`
}

// ProgressView is what the student client receives for an attempt.
type ProgressView struct {
	AttemptID        uuid.UUID      `json:"attempt_id"`
	SubjectID        int64          `json:"subject_id"`
	TestType         TestType       `json:"test_type"`
	Questions        []QuestionView `json:"questions"`
	Answers          []string       `json:"answers"`
	Marked           []int          `json:"marked"`
	CurrentIndex     int            `json:"current_index"`
	StartTime        time.Time      `json:"start_time"`
	DurationSeconds  int            `json:"duration_seconds"`
	RemainingSeconds int            `json:"remaining_seconds"`
}

// View strips the answer key for delivery to the student.
func (p *Progress) View(now time.Time) ProgressView {
	qs := make([]QuestionView, len(p.Questions))
	for i, q := range p.Questions {
		qs[i] = QuestionView{ID: q.ID, Text: q.Text, Options: q.Options, Marks: q.Marks}
	}
	marked := p.Marked
	if marked == nil {
		marked = []int{}
	}
	return ProgressView{
		AttemptID:        p.AttemptID,
		SubjectID:        p.SubjectID,
		TestType:         p.TestType,
		Questions:        qs,
		Answers:          p.Answers,
		Marked:           marked,
		CurrentIndex:     p.CurrentIndex,
		StartTime:        p.StartTime,
		DurationSeconds:  p.DurationSeconds,
		RemainingSeconds: p.RemainingSeconds(now),
	}
}

// StartResponse is returned by the start endpoint.
type StartResponse struct {
	Mode     StartMode    `json:"mode"`
	Progress ProgressView `json:"progress"`
}

// EligibilityResponse is returned by the eligibility endpoint.
type EligibilityResponse struct {
	CanStart bool      `json:"can_start"`
	Mode     StartMode `json:"mode,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// SessionState is the timer view of an attempt.
type SessionState struct {
	AttemptID               uuid.UUID   `json:"attempt_id"`
	RemainingSeconds        int         `json:"remaining_seconds"`
	Warning                 bool        `json:"warning"`
	Submitted               bool        `json:"submitted"`
	AutosaveIntervalSeconds int         `json:"autosave_interval_seconds"`
	Result                  *TestResult `json:"result,omitempty"`
}

// AnswerRequest answers a question either by value or by option position.
// When OptionIndex is set it wins over Answer.
type AnswerRequest struct {
	Answer      string `json:"answer" binding:"max=5000"`
	OptionIndex *int   `json:"option_index"`
}

// NavigateRequest moves the student's cursor.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

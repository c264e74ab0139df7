package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
)

// RetakeService is the admin side of retake grants.
type RetakeService struct {
	tx      repository.TxRunner
	retakes repository.RetakeStore
	log     zerolog.Logger
}

// NewRetakeService creates a new RetakeService.
func NewRetakeService(tx repository.TxRunner, retakes repository.RetakeStore, log zerolog.Logger) *RetakeService {
	return &RetakeService{
		tx:      tx,
		retakes: retakes,
		log:     log.With().Str("component", "retake").Logger(),
	}
}

// Get reports whether a retake is granted.
func (s *RetakeService) Get(ctx context.Context, key model.RetakeKey) (bool, error) {
	ok, err := s.retakes.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get retake: %w", err)
	}
	return ok, nil
}

// Set grants or revokes a retake for a student of the admin's school.
func (s *RetakeService) Set(ctx context.Context, schoolID int64, req model.SetRetakeRequest) error {
	key := model.RetakeKey{StudentID: req.StudentID, SubjectID: req.SubjectID, SchoolID: schoolID}
	if err := s.retakes.Set(ctx, key, *req.CanRetake); err != nil {
		return fmt.Errorf("set retake: %w", err)
	}

	s.log.Info().
		Int64("student_id", key.StudentID).
		Int64("subject_id", key.SubjectID).
		Int64("school_id", key.SchoolID).
		Bool("can_retake", *req.CanRetake).
		Msg("Retake permission updated")
	return nil
}

// List returns the retake rows of a school.
func (s *RetakeService) List(ctx context.Context, schoolID int64, subjectID *int64) ([]model.RetakePermission, error) {
	list, err := s.retakes.List(ctx, schoolID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list retakes: %w", err)
	}
	if list == nil {
		list = []model.RetakePermission{}
	}
	return list, nil
}

// ClearProgress discards a student's attempt so the next start is fresh. Any
// outstanding grant on the subject is revoked in the same transaction.
func (s *RetakeService) ClearProgress(ctx context.Context, key model.ProgressKey) error {
	if !key.TestType.Valid() {
		return ErrInvalidTestType
	}

	err := s.tx.RunInTx(ctx, func(st repository.Stores) error {
		if err := st.Progress().Clear(ctx, key); err != nil {
			return fmt.Errorf("clear progress: %w", err)
		}
		if err := st.Retakes().Set(ctx, key.RetakeKey(), false); err != nil {
			return fmt.Errorf("revoke retake: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Int64("student_id", key.StudentID).
		Int64("subject_id", key.SubjectID).
		Int64("school_id", key.SchoolID).
		Str("test_type", string(key.TestType)).
		Msg("Progress cleared")
	return nil
}

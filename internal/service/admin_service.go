package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
)

// ErrInvalidLimit is returned for a leaderboard limit outside 1..500.
var ErrInvalidLimit = errors.New("limit must be between 1 and 500")

// DurationStore reads and writes configured durations.
type DurationStore interface {
	Set(ctx context.Context, d *model.TestDuration) error
	ListBySchool(ctx context.Context, schoolID int64) ([]model.TestDuration, error)
}

// LeaderboardReader reads the leaderboard.
type LeaderboardReader interface {
	List(ctx context.Context, schoolID, subjectID int64, className *string, limit int) ([]model.LeaderboardEntry, error)
}

// AdminService serves the admin reporting and configuration surface.
type AdminService struct {
	durations   DurationStore
	results     repository.ResultStore
	leaderboard LeaderboardReader
}

// NewAdminService creates a new AdminService.
func NewAdminService(durations DurationStore, results repository.ResultStore, leaderboard LeaderboardReader) *AdminService {
	return &AdminService{durations: durations, results: results, leaderboard: leaderboard}
}

// SetDuration configures the duration of a class and subject in the admin's school.
func (s *AdminService) SetDuration(ctx context.Context, schoolID int64, req model.SetDurationRequest) (*model.TestDuration, error) {
	d := &model.TestDuration{
		SchoolID:        schoolID,
		ClassName:       req.ClassName,
		SubjectID:       req.SubjectID,
		DurationSeconds: req.DurationSeconds,
	}
	if err := s.durations.Set(ctx, d); err != nil {
		return nil, fmt.Errorf("set duration: %w", err)
	}
	return d, nil
}

// ListDurations returns every duration configured in a school.
func (s *AdminService) ListDurations(ctx context.Context, schoolID int64) ([]model.TestDuration, error) {
	list, err := s.durations.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list durations: %w", err)
	}
	if list == nil {
		list = []model.TestDuration{}
	}
	return list, nil
}

// ListResults returns a page of results and the total count.
func (s *AdminService) ListResults(ctx context.Context, f repository.ResultFilter, page, perPage int) ([]model.TestResult, int64, error) {
	list, total, err := s.results.List(ctx, f, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	if list == nil {
		list = []model.TestResult{}
	}
	return list, total, nil
}

// Leaderboard returns the top students of a subject.
func (s *AdminService) Leaderboard(ctx context.Context, schoolID, subjectID int64, className *string, limit int) ([]model.LeaderboardEntry, error) {
	if limit < 1 || limit > 500 {
		return nil, ErrInvalidLimit
	}
	list, err := s.leaderboard.List(ctx, schoolID, subjectID, className, limit)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	if list == nil {
		list = []model.LeaderboardEntry{}
	}
	return list, nil
}

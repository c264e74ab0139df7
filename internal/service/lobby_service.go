package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
)

// SubjectLister lists the subjects of a class.
type SubjectLister interface {
	ListByClass(ctx context.Context, schoolID int64, className string) ([]model.Subject, error)
}

// LobbyService builds the student's overview of their tests.
type LobbyService struct {
	subjects SubjectLister
	progress repository.ProgressStore
	retakes  repository.RetakeStore
	now      func() time.Time
}

// NewLobbyService creates a new LobbyService.
func NewLobbyService(subjects SubjectLister, progress repository.ProgressStore, retakes repository.RetakeStore) *LobbyService {
	return &LobbyService{subjects: subjects, progress: progress, retakes: retakes, now: time.Now}
}

// GetLobby returns one entry per subject of the student's class and test type.
func (s *LobbyService) GetLobby(ctx context.Context, student model.StudentRef) ([]model.LobbyEntry, error) {
	subjects, err := s.subjects.ListByClass(ctx, student.SchoolID, student.ClassName)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	attempts, err := s.progress.ListByStudent(ctx, student.ID, student.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	byKey := make(map[model.ProgressKey]*model.Progress, len(attempts))
	for i := range attempts {
		byKey[attempts[i].Key()] = &attempts[i]
	}

	now := s.now()
	lobby := make([]model.LobbyEntry, 0, len(subjects)*len(model.TestTypes))

	for _, subj := range subjects {
		granted := false
		grantLoaded := false

		for _, tt := range model.TestTypes {
			entry := model.LobbyEntry{SubjectID: subj.ID, SubjectName: subj.Name, TestType: tt, Status: model.LobbyNotStarted}

			p, ok := byKey[KeyFor(student, subj.ID, tt)]
			switch {
			case !ok:
			case !p.Submitted:
				entry.Status = model.LobbyInProgress
				remaining := p.RemainingSeconds(now)
				entry.RemainingSeconds = &remaining
			default:
				if !grantLoaded {
					granted, err = s.retakes.Get(ctx, model.RetakeKey{StudentID: student.ID, SubjectID: subj.ID, SchoolID: student.SchoolID})
					if err != nil {
						return nil, fmt.Errorf("get retake: %w", err)
					}
					grantLoaded = true
				}
				entry.Status = model.LobbySubmitted
				if granted {
					entry.Status = model.LobbyRetakeAvailable
				}
			}

			lobby = append(lobby, entry)
		}
	}

	return lobby, nil
}

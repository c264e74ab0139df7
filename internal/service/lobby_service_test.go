package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttest/smarttest-backend/internal/model"
)

type fakeSubjects []model.Subject

func (f fakeSubjects) ListByClass(context.Context, int64, string) ([]model.Subject, error) {
	return f, nil
}

func TestGetLobby(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	tx := &memTx{
		progress: map[model.ProgressKey]model.Progress{},
		retakes:  map[model.RetakeKey]bool{},
	}

	inProgress := KeyFor(student, subjectMath, model.TestTypeObjective)
	tx.progress[inProgress] = model.Progress{
		AttemptID: uuid.New(), StudentID: student.ID, SubjectID: subjectMath, SchoolID: student.SchoolID,
		TestType: model.TestTypeObjective, StartTime: now.Add(-10 * time.Minute), DurationSeconds: 1800,
	}
	done := KeyFor(student, subjectEssay, model.TestTypeSubjective)
	tx.progress[done] = model.Progress{
		AttemptID: uuid.New(), StudentID: student.ID, SubjectID: subjectEssay, SchoolID: student.SchoolID,
		TestType: model.TestTypeSubjective, Submitted: true,
	}
	tx.retakes[done.RetakeKey()] = true

	svc := NewLobbyService(
		fakeSubjects{{ID: subjectMath, Name: "Mathematics"}, {ID: subjectEssay, Name: "English"}},
		tx.Progress(), tx.Retakes(),
	)
	svc.now = func() time.Time { return now }

	lobby, err := svc.GetLobby(context.Background(), student)
	require.NoError(t, err)
	require.Len(t, lobby, 4)

	assert.Equal(t, model.LobbyInProgress, lobby[0].Status)
	require.NotNil(t, lobby[0].RemainingSeconds)
	assert.Equal(t, 1200, *lobby[0].RemainingSeconds)
	assert.Equal(t, model.LobbyNotStarted, lobby[1].Status)
	assert.Equal(t, model.LobbyNotStarted, lobby[2].Status)
	assert.Equal(t, model.LobbyRetakeAvailable, lobby[3].Status)
	assert.Equal(t, "English", lobby[3].SubjectName)
}

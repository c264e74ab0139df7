package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
)

const (
	subjectMath    int64 = 10
	subjectEssay   int64 = 20
	subjectNoTimer int64 = 30
)

var student = model.StudentRef{ID: 7, SchoolID: 1, ClassName: "JSS1", AccessCode: "AB12"}

type harness struct {
	db    *memDB
	bank  *fakeBank
	sink  *fakeSink
	queue *fakeQueue
	clock *fakeClock
	svc   *TestSessionService
}

func newHarness(t *testing.T, shuffle func(int, func(i, j int))) *harness {
	t.Helper()

	h := &harness{
		db: newMemDB(),
		bank: &fakeBank{
			objective: []model.Question{
				{ID: 1, Text: "Capital of France?", Options: []string{"London", "Paris", "Rome"}, Answer: "Paris"},
				{ID: 2, Text: "2 + 2?", Options: []string{"3", "4", "5"}, Answer: "4"},
				{ID: 3, Text: "Colour of blood?", Options: []string{"Blue", "Green", "Red"}, Answer: "Red"},
			},
			subjective: []model.SubjectiveQuestion{
				{ID: 101, Text: "Describe the water cycle.", Marks: 10},
				{ID: 102, Text: "Explain photosynthesis.", Marks: 5},
			},
		},
		sink:  &fakeSink{},
		queue: &fakeQueue{},
		clock: &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)},
	}

	cfg := config.SessionConfig{
		QuestionLimit:    30,
		AutosaveInterval: 60 * time.Second,
		WarningWindow:    300 * time.Second,
		TickInterval:     5 * time.Second,
	}
	durations := fakeDurations{subjectMath: 3600, subjectEssay: 1800}

	h.svc = NewTestSessionService(h.db, h.bank, durations, h.sink, h.queue, cfg, zerolog.Nop(),
		WithClock(h.clock.Now), WithShuffle(shuffle))
	return h
}

func mathKey() model.ProgressKey { return KeyFor(student, subjectMath, model.TestTypeObjective) }

func (h *harness) start(t *testing.T, subjectID int64, tt model.TestType) *model.Progress {
	t.Helper()
	p, _, err := h.svc.Start(context.Background(), student, subjectID, tt)
	require.NoError(t, err)
	return p
}

// ─── Start / Resume ─────────────────────────────────────────────────

func TestStartFresh(t *testing.T) {
	h := newHarness(t, reverseShuffle)
	ctx := context.Background()

	mode, err := h.svc.CanStart(ctx, mathKey())
	require.NoError(t, err)
	assert.Equal(t, model.StartFresh, mode)

	p, mode, err := h.svc.Start(ctx, student, subjectMath, model.TestTypeObjective)
	require.NoError(t, err)

	assert.Equal(t, model.StartFresh, mode)
	assert.NotEqual(t, uuid.Nil, p.AttemptID)
	assert.Equal(t, 3600, p.DurationSeconds)
	assert.Equal(t, h.clock.Now(), p.StartTime)
	assert.Equal(t, []string{"", "", ""}, p.Answers)

	require.Len(t, p.Questions, 3)
	assert.Equal(t, int64(3), p.Questions[0].ID)
	assert.Equal(t, []string{"Red", "Green", "Blue"}, p.Questions[0].Options)
	assert.Equal(t, "Red", p.Questions[0].CorrectAnswer)
}

func TestStartAppliesQuestionLimit(t *testing.T) {
	h := newHarness(t, identityShuffle)
	h.bank.objective = nil
	for i := 1; i <= 45; i++ {
		h.bank.objective = append(h.bank.objective, model.Question{
			ID: int64(i), Text: fmt.Sprintf("q%d", i), Options: []string{"a", "b"}, Answer: "a",
		})
	}

	p := h.start(t, subjectMath, model.TestTypeObjective)

	assert.Len(t, p.Questions, 30)
	assert.Len(t, p.Answers, 30)
}

func TestStartResumesWithoutRedrawing(t *testing.T) {
	h := newHarness(t, reverseShuffle)
	first := h.start(t, subjectMath, model.TestTypeObjective)
	callsAfterFirst := h.bank.Calls()

	_, err := h.svc.RecordAnswer(context.Background(), mathKey(), 1, "4")
	require.NoError(t, err)

	second, mode, err := h.svc.Start(context.Background(), student, subjectMath, model.TestTypeObjective)
	require.NoError(t, err)

	assert.Equal(t, model.StartResume, mode)
	assert.Equal(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, first.Questions, second.Questions)
	assert.Equal(t, "4", second.Answers[1])
	assert.Equal(t, callsAfterFirst, h.bank.Calls())
	assert.Len(t, h.db.progress, 1)
}

func TestResume(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()

	_, err := h.svc.Resume(ctx, mathKey())
	assert.ErrorIs(t, err, ErrNoSavedProgress)

	started := h.start(t, subjectMath, model.TestTypeObjective)
	p, err := h.svc.Resume(ctx, mathKey())
	require.NoError(t, err)
	assert.Equal(t, started.AttemptID, p.AttemptID)

	_, err = h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)

	_, err = h.svc.Resume(ctx, mathKey())
	assert.ErrorIs(t, err, ErrNoSavedProgress)
}

func TestStartAfterSubmitWithoutRetake(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)
	_, err := h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)

	_, err = h.svc.CanStart(ctx, mathKey())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	_, _, err = h.svc.Start(ctx, student, subjectMath, model.TestTypeObjective)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestRetakeIsConsumedOnce(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	first := h.start(t, subjectMath, model.TestTypeObjective)
	_, err := h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)

	h.db.retakes[mathKey().RetakeKey()] = true

	mode, err := h.svc.CanStart(ctx, mathKey())
	require.NoError(t, err)
	assert.Equal(t, model.StartRetake, mode)

	second, mode, err := h.svc.Start(ctx, student, subjectMath, model.TestTypeObjective)
	require.NoError(t, err)
	assert.Equal(t, model.StartRetake, mode)
	assert.NotEqual(t, first.AttemptID, second.AttemptID)
	assert.False(t, second.Submitted)
	assert.False(t, h.db.retakes[mathKey().RetakeKey()])

	_, err = h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)

	_, _, err = h.svc.Start(ctx, student, subjectMath, model.TestTypeObjective)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Len(t, h.db.results, 2)
}

func TestConcurrentRetakeStartsConsumeOneGrant(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)
	_, err := h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)
	h.db.retakes[mathKey().RetakeKey()] = true

	var wg sync.WaitGroup
	modes := make([]model.StartMode, 8)
	errs := make([]error, 8)
	for i := range modes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, modes[i], errs[i] = h.svc.Start(ctx, student, subjectMath, model.TestTypeObjective)
		}(i)
	}
	wg.Wait()

	retakes := 0
	for i := range modes {
		require.NoError(t, errs[i])
		if modes[i] == model.StartRetake {
			retakes++
		} else {
			assert.Equal(t, model.StartResume, modes[i])
		}
	}
	assert.Equal(t, 1, retakes)
}

func TestNoDurationRollsBackRetake(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	key := KeyFor(student, subjectNoTimer, model.TestTypeObjective)

	_, _, err := h.svc.Start(ctx, student, subjectNoTimer, model.TestTypeObjective)
	assert.ErrorIs(t, err, ErrNoDurationConfigured)
	assert.Empty(t, h.db.progress)

	// A submitted attempt with a grant must keep both when the restart fails.
	h.db.progress[key] = model.Progress{
		AttemptID: uuid.New(), StudentID: student.ID, SubjectID: subjectNoTimer, SchoolID: student.SchoolID,
		TestType: model.TestTypeObjective, Submitted: true,
	}
	h.db.retakes[key.RetakeKey()] = true

	_, _, err = h.svc.Start(ctx, student, subjectNoTimer, model.TestTypeObjective)
	assert.ErrorIs(t, err, ErrNoDurationConfigured)
	assert.True(t, h.db.retakes[key.RetakeKey()])
	assert.True(t, h.db.progress[key].Submitted)
}

func TestStartWithEmptyBank(t *testing.T) {
	h := newHarness(t, identityShuffle)
	h.bank.objective = nil

	_, _, err := h.svc.Start(context.Background(), student, subjectMath, model.TestTypeObjective)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestStartRejectsUnknownTestType(t *testing.T) {
	h := newHarness(t, identityShuffle)

	_, _, err := h.svc.Start(context.Background(), student, subjectMath, model.TestType("oral"))
	assert.ErrorIs(t, err, ErrInvalidTestType)
}

func TestStartLosingInsertRaceResumesWinner(t *testing.T) {
	h := newHarness(t, identityShuffle)
	winner := uuid.New()

	h.db.beforeUpsert = func(tx *memTx) {
		h.db.beforeUpsert = nil
		tx.progress[mathKey()] = model.Progress{
			AttemptID: winner, StudentID: student.ID, SubjectID: subjectMath, SchoolID: student.SchoolID,
			ClassName: student.ClassName, TestType: model.TestTypeObjective,
			Questions:       []model.SessionQuestion{{ID: 1, Text: "q", Options: []string{"a"}, CorrectAnswer: "a"}},
			Answers:         []string{""},
			StartTime:       h.clock.Now(),
			DurationSeconds: 3600,
		}
	}

	p, mode, err := h.svc.Start(context.Background(), student, subjectMath, model.TestTypeObjective)
	require.NoError(t, err)

	assert.Equal(t, model.StartResume, mode)
	assert.Equal(t, winner, p.AttemptID)
	assert.Len(t, h.db.progress, 1)
}

func TestStartOnExpiredAttemptSubmitsIt(t *testing.T) {
	h := newHarness(t, identityShuffle)
	h.start(t, subjectMath, model.TestTypeObjective)
	h.clock.Advance(2 * time.Hour)

	_, _, err := h.svc.Start(context.Background(), student, subjectMath, model.TestTypeObjective)

	var timeUp *TimeUpError
	require.ErrorAs(t, err, &timeUp)
	assert.ErrorIs(t, err, ErrTimeUp)
	assert.Equal(t, model.ResultStatusGraded, timeUp.Result.Status)
	assert.True(t, h.db.progress[mathKey()].Submitted)
}

// ─── Answers & navigation ───────────────────────────────────────────

func TestRecordAnswer(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)

	stored, err := h.svc.RecordAnswer(ctx, mathKey(), 0, "  paris ")
	require.NoError(t, err)
	assert.Equal(t, "Paris", stored)

	stored, err = h.svc.RecordAnswer(ctx, mathKey(), 1, "22")
	require.NoError(t, err)
	assert.Equal(t, "", stored)

	_, err = h.svc.RecordAnswer(ctx, mathKey(), 3, "Red")
	assert.ErrorIs(t, err, ErrQuestionIndexOutOfRange)
	_, err = h.svc.RecordAnswer(ctx, mathKey(), -1, "Red")
	assert.ErrorIs(t, err, ErrQuestionIndexOutOfRange)

	p := h.db.progress[mathKey()]
	assert.Equal(t, []string{"Paris", "", ""}, p.Answers)
	assert.Len(t, p.Answers, len(p.Questions))
}

func TestRecordAnswerSubjectiveKeepsText(t *testing.T) {
	h := newHarness(t, identityShuffle)
	key := KeyFor(student, subjectEssay, model.TestTypeSubjective)
	h.start(t, subjectEssay, model.TestTypeSubjective)

	stored, err := h.svc.RecordAnswer(context.Background(), key, 0, "  Evaporation, condensation, precipitation. ")
	require.NoError(t, err)
	assert.Equal(t, "Evaporation, condensation, precipitation.", stored)
}

func TestSelectOption(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)

	stored, err := h.svc.SelectOption(ctx, mathKey(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "Red", stored)

	stored, err = h.svc.SelectOption(ctx, mathKey(), 2, 9)
	require.NoError(t, err)
	assert.Equal(t, "", stored)
	assert.Equal(t, "", h.db.progress[mathKey()].Answers[2])
}

func TestNavigateAndToggleMark(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)

	require.NoError(t, h.svc.Navigate(ctx, mathKey(), 2))
	assert.ErrorIs(t, h.svc.Navigate(ctx, mathKey(), 3), ErrQuestionIndexOutOfRange)

	marked, err := h.svc.ToggleMark(ctx, mathKey(), 1)
	require.NoError(t, err)
	assert.True(t, marked)

	p := h.db.progress[mathKey()]
	assert.Equal(t, 2, p.CurrentIndex)
	assert.Equal(t, []int{1}, p.Marked)

	marked, err = h.svc.ToggleMark(ctx, mathKey(), 1)
	require.NoError(t, err)
	assert.False(t, marked)
	assert.Empty(t, h.db.progress[mathKey()].Marked)
}

func TestMutationsAfterSubmit(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)
	_, err := h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)

	_, err = h.svc.RecordAnswer(ctx, mathKey(), 0, "Paris")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.ErrorIs(t, h.svc.Navigate(ctx, mathKey(), 0), ErrAlreadySubmitted)
}

// ─── Autosave ───────────────────────────────────────────────────────

func TestAutosave(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	p := h.start(t, subjectMath, model.TestTypeObjective)

	status, err := h.svc.Autosave(ctx, mathKey(), model.AutosaveSnapshot{
		AttemptID:    p.AttemptID,
		Answers:      []string{"paris", "nope", "RED"},
		CurrentIndex: 2,
		Marked:       []int{2, 0, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AutosaveSaved, status)

	saved := h.db.progress[mathKey()]
	assert.Equal(t, []string{"Paris", "", "Red"}, saved.Answers)
	assert.Equal(t, 2, saved.CurrentIndex)
	assert.Equal(t, []int{0, 2}, saved.Marked)
}

func TestAutosaveRejectsBadSnapshots(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	p := h.start(t, subjectMath, model.TestTypeObjective)

	_, err := h.svc.Autosave(ctx, mathKey(), model.AutosaveSnapshot{AttemptID: p.AttemptID, Answers: []string{"Paris"}})
	assert.ErrorIs(t, err, model.ErrAnswerCountMismatch)

	_, err = h.svc.Autosave(ctx, mathKey(), model.AutosaveSnapshot{AttemptID: uuid.New(), Answers: []string{"", "", ""}})
	assert.ErrorIs(t, err, ErrStaleAttempt)

	_, err = h.svc.Autosave(ctx, mathKey(), model.AutosaveSnapshot{Answers: []string{"", "", ""}})
	assert.ErrorIs(t, err, ErrStaleAttempt)

	_, err = h.svc.Autosave(ctx, mathKey(), model.AutosaveSnapshot{AttemptID: p.AttemptID, Answers: []string{"", "", ""}, Marked: []int{7}})
	assert.ErrorIs(t, err, ErrQuestionIndexOutOfRange)

	assert.Empty(t, h.queue.jobs)
}

func TestAutosaveQueuesWhenStoreFails(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	p := h.start(t, subjectMath, model.TestTypeObjective)
	h.db.saveErr = errStoreDown

	snap := model.AutosaveSnapshot{AttemptID: p.AttemptID, Answers: []string{"Paris", "", ""}}
	status, err := h.svc.Autosave(ctx, mathKey(), snap)
	require.NoError(t, err)
	assert.Equal(t, model.AutosaveQueued, status)
	require.Len(t, h.queue.jobs, 1)
	assert.Equal(t, mathKey(), h.queue.jobs[0].Key)

	h.db.saveErr = nil
	require.NoError(t, h.svc.ApplyAutosave(ctx, h.queue.jobs[0]))
	assert.Equal(t, "Paris", h.db.progress[mathKey()].Answers[0])
}

func TestQueuedAutosaveIsGradedAfterDeadline(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	p := h.start(t, subjectMath, model.TestTypeObjective)

	h.clock.Advance(50 * time.Minute)
	h.db.saveErr = errStoreDown
	status, err := h.svc.Autosave(ctx, mathKey(), model.AutosaveSnapshot{AttemptID: p.AttemptID, Answers: []string{"Paris", "4", "Red"}})
	require.NoError(t, err)
	require.Equal(t, model.AutosaveQueued, status)
	require.Len(t, h.queue.jobs, 1)

	h.clock.Advance(15 * time.Minute)
	h.db.saveErr = nil
	require.NoError(t, h.svc.ApplyAutosave(ctx, h.queue.jobs[0]))

	saved := h.db.progress[mathKey()]
	assert.True(t, saved.Submitted)
	assert.Equal(t, []string{"Paris", "4", "Red"}, saved.Answers)

	res, ok := h.db.results[p.AttemptID]
	require.True(t, ok)
	require.NotNil(t, res.Score)
	assert.Equal(t, 3, *res.Score)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, h.sink.Events(), 1)
}

func TestLateAutosaveDoesNotChangeGrade(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	p := h.start(t, subjectMath, model.TestTypeObjective)

	h.clock.Advance(61 * time.Minute)
	job := model.AutosaveJob{
		Key:      mathKey(),
		Snapshot: model.AutosaveSnapshot{AttemptID: p.AttemptID, Answers: []string{"Paris", "4", "Red"}},
		QueuedAt: h.clock.Now(),
	}

	err := h.svc.ApplyAutosave(ctx, job)
	var timeUp *TimeUpError
	require.ErrorAs(t, err, &timeUp)
	require.NotNil(t, timeUp.Result.Score)
	assert.Equal(t, 0, *timeUp.Result.Score)
	assert.Equal(t, []string{"", "", ""}, h.db.progress[mathKey()].Answers)
}

func TestQueuedAutosaveFromPreviousAttemptIsRejected(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	old := h.start(t, subjectMath, model.TestTypeObjective)

	h.db.saveErr = errStoreDown
	_, err := h.svc.Autosave(ctx, mathKey(), model.AutosaveSnapshot{AttemptID: old.AttemptID, Answers: []string{"Paris", "4", "Red"}})
	require.NoError(t, err)
	require.Len(t, h.queue.jobs, 1)
	h.db.saveErr = nil

	_, err = h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)
	h.db.retakes[mathKey().RetakeKey()] = true
	fresh := h.start(t, subjectMath, model.TestTypeObjective)
	require.NotEqual(t, old.AttemptID, fresh.AttemptID)

	assert.ErrorIs(t, h.svc.ApplyAutosave(ctx, h.queue.jobs[0]), ErrStaleAttempt)

	anonymous := h.queue.jobs[0]
	anonymous.Snapshot.AttemptID = uuid.Nil
	assert.ErrorIs(t, h.svc.ApplyAutosave(ctx, anonymous), ErrStaleAttempt)

	assert.Equal(t, []string{"", "", ""}, h.db.progress[mathKey()].Answers)
}

func TestAutosaveFailsWhenQueueAlsoFails(t *testing.T) {
	h := newHarness(t, identityShuffle)
	p := h.start(t, subjectMath, model.TestTypeObjective)
	h.db.saveErr = errStoreDown
	h.queue.err = errStoreDown

	_, err := h.svc.Autosave(context.Background(), mathKey(), model.AutosaveSnapshot{AttemptID: p.AttemptID, Answers: []string{"", "", ""}})
	assert.ErrorIs(t, err, errStoreDown)
}

// ─── Submit & timer ─────────────────────────────────────────────────

func TestSubmitScoresObjective(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	p := h.start(t, subjectMath, model.TestTypeObjective)

	for i, a := range []string{"Paris", "5", "red"} {
		_, err := h.svc.RecordAnswer(ctx, mathKey(), i, a)
		require.NoError(t, err)
	}

	res, err := h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)

	assert.Equal(t, p.AttemptID, res.AttemptID)
	assert.Equal(t, model.ResultStatusGraded, res.Status)
	require.NotNil(t, res.Score)
	assert.Equal(t, 2, *res.Score)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 66.67, *res.Percentage)
	assert.False(t, res.Breakdown[1].IsCorrect)
	assert.True(t, res.Breakdown[2].IsCorrect)

	assert.Len(t, h.db.submissions, 3)
	assert.True(t, h.db.progress[mathKey()].Submitted)

	events := h.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, p.AttemptID, events[0].AttemptID)
}

func TestSubmitSubjective(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	key := KeyFor(student, subjectEssay, model.TestTypeSubjective)
	h.start(t, subjectEssay, model.TestTypeSubjective)
	_, err := h.svc.RecordAnswer(ctx, key, 0, "Water evaporates and falls as rain.")
	require.NoError(t, err)

	res, err := h.svc.Submit(ctx, key)
	require.NoError(t, err)

	assert.Equal(t, model.ResultStatusPendingReview, res.Status)
	assert.Nil(t, res.Score)
	assert.Nil(t, res.Percentage)
	assert.Equal(t, 15, res.Total)

	require.Len(t, h.db.grades, 2)
	assert.Equal(t, "Water evaporates and falls as rain.", h.db.grades[0].SubmittedText)
	assert.Equal(t, model.ResultStatusPendingReview, h.db.grades[0].Status)
	assert.Empty(t, h.db.submissions)
}

func TestSubmitIsIdempotent(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)

	first, err := h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)
	second, err := h.svc.Submit(ctx, mathKey())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, h.db.results, 1)
	assert.Len(t, h.sink.Events(), 1)
}

func TestSubmitWithoutAttempt(t *testing.T) {
	h := newHarness(t, identityShuffle)

	_, err := h.svc.Submit(context.Background(), mathKey())
	assert.ErrorIs(t, err, ErrNoSavedProgress)
}

func TestState(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	p := h.start(t, subjectMath, model.TestTypeObjective)

	st, err := h.svc.State(ctx, mathKey())
	require.NoError(t, err)
	assert.Equal(t, p.AttemptID, st.AttemptID)
	assert.Equal(t, 3600, st.RemainingSeconds)
	assert.False(t, st.Warning)
	assert.Equal(t, 60, st.AutosaveIntervalSeconds)

	h.clock.Advance(3400 * time.Second)
	st, err = h.svc.State(ctx, mathKey())
	require.NoError(t, err)
	assert.Equal(t, 200, st.RemainingSeconds)
	assert.True(t, st.Warning)
	assert.False(t, st.Submitted)
}

func TestStateAutoSubmitsExpiredAttempt(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)
	_, err := h.svc.RecordAnswer(ctx, mathKey(), 0, "Paris")
	require.NoError(t, err)

	h.clock.Advance(3700 * time.Second)

	st, err := h.svc.State(ctx, mathKey())
	require.NoError(t, err)
	assert.True(t, st.Submitted)
	assert.Zero(t, st.RemainingSeconds)
	assert.False(t, st.Warning)
	require.NotNil(t, st.Result)
	assert.Equal(t, 1, *st.Result.Score)

	again, err := h.svc.State(ctx, mathKey())
	require.NoError(t, err)
	assert.Equal(t, st.Result.AttemptID, again.Result.AttemptID)
	assert.Len(t, h.sink.Events(), 1)
}

func TestTimeoutWithConcurrentObserversSubmitsOnce(t *testing.T) {
	h := newHarness(t, identityShuffle)
	ctx := context.Background()
	h.start(t, subjectMath, model.TestTypeObjective)
	h.clock.Advance(3700 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_, err := h.svc.State(ctx, mathKey())
				assert.NoError(t, err)
			case 1:
				_, err := h.svc.RecordAnswer(ctx, mathKey(), 0, "Paris")
				assert.Error(t, err)
			default:
				_, err := h.svc.Submit(ctx, mathKey())
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, h.db.results, 1)
	assert.Len(t, h.sink.Events(), 1)
	assert.Len(t, h.db.submissions, 3)
}

func TestMutationPastDeadlineReturnsTimeUp(t *testing.T) {
	h := newHarness(t, identityShuffle)
	h.start(t, subjectMath, model.TestTypeObjective)
	h.clock.Advance(time.Hour)

	_, err := h.svc.RecordAnswer(context.Background(), mathKey(), 0, "Paris")

	var timeUp *TimeUpError
	require.ErrorAs(t, err, &timeUp)
	assert.Equal(t, "", h.db.progress[mathKey()].Answers[0])
	assert.True(t, h.db.progress[mathKey()].Submitted)
}

func TestIsStateError(t *testing.T) {
	assert.True(t, IsStateError(ErrAlreadySubmitted))
	assert.True(t, IsStateError(fmt.Errorf("wrapped: %w", model.ErrAnswerCountMismatch)))
	assert.True(t, IsStateError(&TimeUpError{}))
	assert.False(t, IsStateError(errStoreDown))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(ErrStaleAttempt))
	assert.True(t, IsPermanent(fmt.Errorf("lock progress: %w", repository.ErrCorruptProgress)))
	assert.False(t, IsStateError(repository.ErrCorruptProgress))
	assert.False(t, IsPermanent(errStoreDown))
}

func TestDefaultClockMatchesStoredPrecision(t *testing.T) {
	svc := NewTestSessionService(newMemDB(), &fakeBank{}, fakeDurations{}, &fakeSink{}, &fakeQueue{},
		config.SessionConfig{}, zerolog.Nop())

	now := svc.now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%int(time.Microsecond))
}

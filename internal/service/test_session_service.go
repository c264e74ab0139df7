package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
	"github.com/smarttest/smarttest-backend/internal/scoring"
)

// ResultSink receives committed results for downstream consumers.
type ResultSink interface {
	PublishResult(ctx context.Context, ev model.ResultEvent) error
}

// AutosaveQueue buffers autosave snapshots the store could not take.
type AutosaveQueue interface {
	EnqueueAutosave(ctx context.Context, job model.AutosaveJob) error
}

// TestSessionService drives a student's attempt from start to result.
// All state lives in the Progress row; every operation runs in one
// transaction that locks that row.
type TestSessionService struct {
	tx        repository.TxRunner
	bank      repository.QuestionBank
	durations repository.DurationProvider
	sink      ResultSink
	queue     AutosaveQueue
	cfg       config.SessionConfig
	log       zerolog.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

// SessionOption customises a TestSessionService.
type SessionOption func(*TestSessionService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) SessionOption {
	return func(s *TestSessionService) { s.now = now }
}

// WithShuffle replaces the random permutation used for questions and options.
func WithShuffle(shuffle func(n int, swap func(i, j int))) SessionOption {
	return func(s *TestSessionService) { s.shuffle = shuffle }
}

// NewTestSessionService creates a new TestSessionService.
func NewTestSessionService(
	tx repository.TxRunner,
	bank repository.QuestionBank,
	durations repository.DurationProvider,
	sink ResultSink,
	queue AutosaveQueue,
	cfg config.SessionConfig,
	log zerolog.Logger,
	opts ...SessionOption,
) *TestSessionService {
	s := &TestSessionService{
		tx:        tx,
		bank:      bank,
		durations: durations,
		sink:      sink,
		queue:     queue,
		cfg:       cfg,
		log:       log.With().Str("component", "test_session").Logger(),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		shuffle:   rand.Shuffle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyFor builds the progress key of a student's test.
func KeyFor(student model.StudentRef, subjectID int64, testType model.TestType) model.ProgressKey {
	return model.ProgressKey{StudentID: student.ID, SubjectID: subjectID, SchoolID: student.SchoolID, TestType: testType}
}

// ─── Start / Resume ─────────────────────────────────────────────────

// CanStart reports how a start request for key would be served.
func (s *TestSessionService) CanStart(ctx context.Context, key model.ProgressKey) (model.StartMode, error) {
	if !key.TestType.Valid() {
		return "", ErrInvalidTestType
	}

	var mode model.StartMode
	err := s.tx.RunInTx(ctx, func(st repository.Stores) error {
		p, err := st.Progress().Get(ctx, key)
		if errors.Is(err, pgx.ErrNoRows) {
			mode = model.StartFresh
			return nil
		}
		if err != nil {
			return fmt.Errorf("get progress: %w", err)
		}
		if !p.Submitted {
			mode = model.StartResume
			return nil
		}

		granted, err := st.Retakes().Get(ctx, key.RetakeKey())
		if err != nil {
			return fmt.Errorf("get retake: %w", err)
		}
		if !granted {
			return ErrAlreadySubmitted
		}
		mode = model.StartRetake
		return nil
	})
	if err != nil {
		return "", err
	}
	return mode, nil
}

// Start opens an attempt. An in-progress attempt is resumed as stored; a
// submitted one is replaced only by consuming a retake grant, in the same
// transaction that writes the new attempt.
func (s *TestSessionService) Start(ctx context.Context, student model.StudentRef, subjectID int64, testType model.TestType) (*model.Progress, model.StartMode, error) {
	if !testType.Valid() {
		return nil, "", ErrInvalidTestType
	}
	key := KeyFor(student, subjectID, testType)

	var (
		out     *model.Progress
		mode    model.StartMode
		expired *model.TestResult
	)

	err := s.tx.RunInTx(ctx, func(st repository.Stores) error {
		existing, err := st.Progress().GetForUpdate(ctx, key)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			mode = model.StartFresh
		case err != nil:
			return fmt.Errorf("lock progress: %w", err)
		case !existing.Submitted:
			if existing.Expired(s.now()) {
				expired, err = s.submitLocked(ctx, st, existing)
				return err
			}
			out, mode = existing, model.StartResume
			return nil
		default:
			consumed, err := st.Retakes().Consume(ctx, key.RetakeKey())
			if err != nil {
				return fmt.Errorf("consume retake: %w", err)
			}
			if !consumed {
				return ErrAlreadySubmitted
			}
			mode = model.StartRetake
		}

		p, err := s.newAttempt(ctx, student, key)
		if err != nil {
			return err
		}

		applied, err := st.Progress().Upsert(ctx, p)
		if err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}
		if applied {
			out = p
			return nil
		}

		// A concurrent start inserted first; serve its attempt instead.
		winner, err := st.Progress().GetForUpdate(ctx, key)
		if err != nil {
			return fmt.Errorf("load concurrent attempt: %w", err)
		}
		if winner.Submitted {
			return ErrAlreadySubmitted
		}
		out, mode = winner, model.StartResume
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if expired != nil {
		s.publish(ctx, expired)
		return nil, "", &TimeUpError{Result: expired}
	}

	s.log.Info().
		Int64("student_id", key.StudentID).
		Int64("subject_id", key.SubjectID).
		Int64("school_id", key.SchoolID).
		Str("test_type", string(key.TestType)).
		Str("attempt_id", out.AttemptID.String()).
		Str("mode", string(mode)).
		Msg("Test started")

	return out, mode, nil
}

// newAttempt draws questions and the duration for a brand-new attempt.
func (s *TestSessionService) newAttempt(ctx context.Context, student model.StudentRef, key model.ProgressKey) (*model.Progress, error) {
	questions, err := s.drawQuestions(ctx, student, key)
	if err != nil {
		return nil, err
	}

	seconds, err := s.durations.GetDuration(ctx, student.SchoolID, student.ClassName, key.SubjectID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && seconds <= 0) {
		return nil, ErrNoDurationConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("get duration: %w", err)
	}

	return &model.Progress{
		AttemptID:       uuid.New(),
		StudentID:       key.StudentID,
		AccessCode:      student.AccessCode,
		SubjectID:       key.SubjectID,
		SchoolID:        key.SchoolID,
		ClassName:       student.ClassName,
		TestType:        key.TestType,
		Questions:       questions,
		Answers:         make([]string, len(questions)),
		Marked:          []int{},
		CurrentIndex:    0,
		StartTime:       s.now(),
		DurationSeconds: seconds,
	}, nil
}

// drawQuestions picks up to QuestionLimit questions in random order. Objective
// options are shuffled here once; the stored order is what the student sees
// for the whole attempt.
func (s *TestSessionService) drawQuestions(ctx context.Context, student model.StudentRef, key model.ProgressKey) ([]model.SessionQuestion, error) {
	var pool []model.SessionQuestion

	switch key.TestType {
	case model.TestTypeObjective:
		qs, err := s.bank.GetObjectiveQuestions(ctx, student.SchoolID, student.ClassName, key.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("get objective questions: %w", err)
		}
		for _, q := range qs {
			if len(q.Options) == 0 {
				s.log.Warn().Int64("question_id", q.ID).Msg("Skipping objective question without options")
				continue
			}
			pool = append(pool, model.SessionQuestion{
				ID:            q.ID,
				Text:          q.Text,
				Options:       append([]string(nil), q.Options...),
				CorrectAnswer: q.Answer,
				Marks:         1,
			})
		}
	case model.TestTypeSubjective:
		qs, err := s.bank.GetSubjectiveQuestions(ctx, student.SchoolID, student.ClassName, key.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("get subjective questions: %w", err)
		}
		for _, q := range qs {
			pool = append(pool, model.SessionQuestion{ID: q.ID, Text: q.Text, Marks: q.Marks})
		}
	default:
		return nil, ErrInvalidTestType
	}

	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}

	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if limit := s.cfg.QuestionLimit; limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	for i := range pool {
		opts := pool[i].Options
		s.shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
	}
	return pool, nil
}

// Resume returns the in-progress attempt exactly as stored. It never draws
// questions again.
func (s *TestSessionService) Resume(ctx context.Context, key model.ProgressKey) (*model.Progress, error) {
	p, err := s.mutate(ctx, key, func(repository.Stores, *model.Progress) error { return nil })
	if errors.Is(err, ErrAlreadySubmitted) {
		return nil, ErrNoSavedProgress
	}
	return p, err
}

// ─── Answers & navigation ───────────────────────────────────────────

// RecordAnswer stores the answer to question index and returns the value kept.
// Objective answers are matched against the attempt's options; anything that
// does not match is stored as blank.
func (s *TestSessionService) RecordAnswer(ctx context.Context, key model.ProgressKey, index int, value string) (string, error) {
	var stored string
	_, err := s.mutate(ctx, key, func(st repository.Stores, p *model.Progress) error {
		if err := p.CheckIndex(index); err != nil {
			return err
		}
		stored = resolveAnswer(p, index, value)
		p.Answers[index] = stored
		return s.save(ctx, st, p)
	})
	return stored, err
}

// SelectOption answers question index with the option at optionIndex. An
// option index outside the question's options clears the answer.
func (s *TestSessionService) SelectOption(ctx context.Context, key model.ProgressKey, index, optionIndex int) (string, error) {
	var stored string
	_, err := s.mutate(ctx, key, func(st repository.Stores, p *model.Progress) error {
		if p.TestType != model.TestTypeObjective {
			return ErrInvalidTestType
		}
		if err := p.CheckIndex(index); err != nil {
			return err
		}
		stored, _ = scoring.OptionAt(p.Questions[index].Options, optionIndex)
		p.Answers[index] = stored
		return s.save(ctx, st, p)
	})
	return stored, err
}

// Navigate moves the attempt's cursor to index.
func (s *TestSessionService) Navigate(ctx context.Context, key model.ProgressKey, index int) error {
	_, err := s.mutate(ctx, key, func(st repository.Stores, p *model.Progress) error {
		if err := p.CheckIndex(index); err != nil {
			return err
		}
		p.CurrentIndex = index
		return s.save(ctx, st, p)
	})
	return err
}

// ToggleMark flips the review mark of question index and returns its new state.
func (s *TestSessionService) ToggleMark(ctx context.Context, key model.ProgressKey, index int) (bool, error) {
	var marked bool
	_, err := s.mutate(ctx, key, func(st repository.Stores, p *model.Progress) error {
		if err := p.CheckIndex(index); err != nil {
			return err
		}
		marked = p.ToggleMark(index)
		return s.save(ctx, st, p)
	})
	return marked, err
}

// Autosave writes the client's working copy. When the store is unavailable the
// snapshot is queued for the autosave worker and AutosaveQueued is returned.
func (s *TestSessionService) Autosave(ctx context.Context, key model.ProgressKey, snap model.AutosaveSnapshot) (model.AutosaveStatus, error) {
	_, err := s.mutate(ctx, key, func(st repository.Stores, p *model.Progress) error {
		return s.applySnapshot(ctx, st, p, snap)
	})
	if err == nil {
		return model.AutosaveSaved, nil
	}
	if IsPermanent(err) || ctx.Err() != nil {
		return "", err
	}

	job := model.AutosaveJob{Key: key, Snapshot: snap, QueuedAt: s.now()}
	if qerr := s.queue.EnqueueAutosave(ctx, job); qerr != nil {
		s.log.Error().Err(qerr).Str("key", key.String()).Msg("Failed to queue autosave")
		return "", fmt.Errorf("autosave: %w", err)
	}

	s.log.Warn().Err(err).Str("key", key.String()).Msg("Autosave queued for retry")
	return model.AutosaveQueued, nil
}

// ApplyAutosave writes a queued snapshot. It is used by the autosave worker.
// A snapshot queued before the deadline is still applied when the attempt has
// since expired, and the attempt is then graded with it.
func (s *TestSessionService) ApplyAutosave(ctx context.Context, job model.AutosaveJob) error {
	applied := false
	apply := func(st repository.Stores, p *model.Progress) error {
		return s.applySnapshot(ctx, st, p, job.Snapshot)
	}
	late := func(st repository.Stores, p *model.Progress) error {
		if job.QueuedAt.IsZero() || !job.QueuedAt.Before(p.Deadline()) {
			return nil
		}
		if err := apply(st, p); err != nil {
			return err
		}
		applied = true
		return nil
	}

	_, err := s.mutateOrFinish(ctx, job.Key, apply, late)
	var timeUp *TimeUpError
	if applied && errors.As(err, &timeUp) {
		return nil
	}
	return err
}

func (s *TestSessionService) applySnapshot(ctx context.Context, st repository.Stores, p *model.Progress, snap model.AutosaveSnapshot) error {
	if snap.AttemptID == uuid.Nil || snap.AttemptID != p.AttemptID {
		return ErrStaleAttempt
	}
	if len(snap.Answers) != len(p.Questions) {
		return fmt.Errorf("%w: got %d answers for %d questions", model.ErrAnswerCountMismatch, len(snap.Answers), len(p.Questions))
	}
	if err := p.CheckIndex(snap.CurrentIndex); err != nil {
		return err
	}
	for _, m := range snap.Marked {
		if err := p.CheckIndex(m); err != nil {
			return err
		}
	}

	for i, v := range snap.Answers {
		p.Answers[i] = resolveAnswer(p, i, v)
	}
	p.CurrentIndex = snap.CurrentIndex
	p.Marked = model.NormalizeMarked(snap.Marked)
	return s.save(ctx, st, p)
}

func resolveAnswer(p *model.Progress, index int, raw string) string {
	v := strings.TrimSpace(raw)
	if p.TestType != model.TestTypeObjective {
		return v
	}
	opt, ok := scoring.ResolveOption(p.Questions[index].Options, v)
	if !ok {
		return ""
	}
	return opt
}

// ─── Submit & timer ─────────────────────────────────────────────────

// Submit finalises the attempt. Submitting an already submitted attempt
// returns the stored result without grading again.
func (s *TestSessionService) Submit(ctx context.Context, key model.ProgressKey) (*model.TestResult, error) {
	var (
		res   *model.TestResult
		fresh bool
	)

	err := s.tx.RunInTx(ctx, func(st repository.Stores) error {
		p, err := st.Progress().GetForUpdate(ctx, key)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoSavedProgress
		}
		if err != nil {
			return fmt.Errorf("lock progress: %w", err)
		}

		if p.Submitted {
			res, err = st.Results().GetByAttempt(ctx, p.AttemptID)
			if err != nil {
				return fmt.Errorf("get result: %w", err)
			}
			return nil
		}

		res, err = s.submitLocked(ctx, st, p)
		fresh = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if fresh {
		s.publish(ctx, res)
	}
	return res, nil
}

// State reports the timer of the attempt. An attempt found past its deadline
// is submitted before State returns, and the result is included.
func (s *TestSessionService) State(ctx context.Context, key model.ProgressKey) (*model.SessionState, error) {
	var (
		state *model.SessionState
		fresh *model.TestResult
	)

	err := s.tx.RunInTx(ctx, func(st repository.Stores) error {
		p, err := st.Progress().Get(ctx, key)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoSavedProgress
		}
		if err != nil {
			return fmt.Errorf("get progress: %w", err)
		}

		now := s.now()
		if !p.Submitted && !p.Expired(now) {
			state = s.stateOf(p, now, nil)
			return nil
		}

		// Either finished or due: take the lock and settle it.
		p, err = st.Progress().GetForUpdate(ctx, key)
		if err != nil {
			return fmt.Errorf("lock progress: %w", err)
		}

		var res *model.TestResult
		if p.Submitted {
			res, err = st.Results().GetByAttempt(ctx, p.AttemptID)
			if err != nil {
				return fmt.Errorf("get result: %w", err)
			}
		} else {
			res, err = s.submitLocked(ctx, st, p)
			if err != nil {
				return err
			}
			fresh = res
		}
		state = s.stateOf(p, s.now(), res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fresh != nil {
		s.publish(ctx, fresh)
	}
	return state, nil
}

func (s *TestSessionService) stateOf(p *model.Progress, now time.Time, res *model.TestResult) *model.SessionState {
	remaining := 0
	if !p.Submitted {
		remaining = p.RemainingSeconds(now)
	}
	window := int(s.cfg.WarningWindow.Seconds())
	return &model.SessionState{
		AttemptID:               p.AttemptID,
		RemainingSeconds:        remaining,
		Warning:                 remaining > 0 && remaining <= window,
		Submitted:               p.Submitted,
		AutosaveIntervalSeconds: int(s.cfg.AutosaveInterval.Seconds()),
		Result:                  res,
	}
}

// submitLocked grades p and records its result. The caller holds the row lock.
func (s *TestSessionService) submitLocked(ctx context.Context, st repository.Stores, p *model.Progress) (*model.TestResult, error) {
	now := s.now()
	key := p.Key()

	if err := st.Progress().MarkSubmitted(ctx, key, p.AttemptID, now); err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}

	res := &model.TestResult{
		AttemptID: p.AttemptID,
		StudentID: p.StudentID,
		SubjectID: p.SubjectID,
		SchoolID:  p.SchoolID,
		ClassName: p.ClassName,
		TestType:  p.TestType,
		TakenAt:   now,
	}

	switch p.TestType {
	case model.TestTypeObjective:
		report := scoring.Score(p.Questions, p.Answers)
		score, pct := report.Score, report.Percentage
		res.Score = &score
		res.Total = report.Total
		res.Percentage = &pct
		res.Status = model.ResultStatusGraded
		res.Breakdown = report.Breakdown

		if err := st.Results().Create(ctx, res); err != nil {
			return nil, fmt.Errorf("create result: %w", err)
		}

		subs := make([]model.Submission, len(report.Breakdown))
		for i, b := range report.Breakdown {
			subs[i] = model.Submission{
				AttemptID:      p.AttemptID,
				StudentID:      p.StudentID,
				QuestionID:     b.QuestionID,
				SelectedAnswer: b.YourAnswer,
				Correct:        b.IsCorrect,
			}
		}
		if err := st.Results().CreateSubmissions(ctx, subs); err != nil {
			return nil, fmt.Errorf("create submissions: %w", err)
		}

	default:
		grades := make([]model.ManualGrade, len(p.Questions))
		for i, q := range p.Questions {
			res.Total += q.Marks
			grades[i] = model.ManualGrade{
				AttemptID:     p.AttemptID,
				StudentID:     p.StudentID,
				QuestionID:    q.ID,
				SubmittedText: p.Answers[i],
				MaxMarks:      q.Marks,
				Status:        model.ResultStatusPendingReview,
			}
		}
		res.Status = model.ResultStatusPendingReview
		res.Breakdown = []model.BreakdownItem{}

		if err := st.Results().Create(ctx, res); err != nil {
			return nil, fmt.Errorf("create result: %w", err)
		}
		if err := st.Results().CreateManualGrades(ctx, grades); err != nil {
			return nil, fmt.Errorf("create manual grades: %w", err)
		}
	}

	p.Submitted = true
	p.SubmittedAt = &now

	s.log.Info().
		Int64("student_id", p.StudentID).
		Int64("subject_id", p.SubjectID).
		Int64("school_id", p.SchoolID).
		Str("test_type", string(p.TestType)).
		Str("attempt_id", p.AttemptID.String()).
		Str("status", string(res.Status)).
		Msg("Test submitted")

	return res, nil
}

// ─── Helpers ────────────────────────────────────────────────────────

// mutate locks the in-progress attempt under key and runs fn on it. An
// attempt past its deadline is submitted instead and a *TimeUpError returned.
func (s *TestSessionService) mutate(ctx context.Context, key model.ProgressKey, fn func(repository.Stores, *model.Progress) error) (*model.Progress, error) {
	return s.mutateOrFinish(ctx, key, fn, nil)
}

// mutateOrFinish is mutate with a hook that runs on an expired attempt just
// before it is graded.
func (s *TestSessionService) mutateOrFinish(ctx context.Context, key model.ProgressKey, fn, finish func(repository.Stores, *model.Progress) error) (*model.Progress, error) {
	if !key.TestType.Valid() {
		return nil, ErrInvalidTestType
	}

	var (
		out     *model.Progress
		expired *model.TestResult
	)

	err := s.tx.RunInTx(ctx, func(st repository.Stores) error {
		p, err := st.Progress().GetForUpdate(ctx, key)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoSavedProgress
		}
		if err != nil {
			return fmt.Errorf("lock progress: %w", err)
		}
		if p.Submitted {
			return ErrAlreadySubmitted
		}

		if p.Expired(s.now()) {
			if finish != nil {
				if err := finish(st, p); err != nil {
					return err
				}
			}
			expired, err = s.submitLocked(ctx, st, p)
			return err
		}

		if err := fn(st, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired != nil {
		s.publish(ctx, expired)
		return nil, &TimeUpError{Result: expired}
	}
	return out, nil
}

func (s *TestSessionService) save(ctx context.Context, st repository.Stores, p *model.Progress) error {
	saved, err := st.Progress().SaveState(ctx, p)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if !saved {
		return ErrNoSavedProgress
	}
	return nil
}

func (s *TestSessionService) publish(ctx context.Context, res *model.TestResult) {
	if err := s.sink.PublishResult(context.WithoutCancel(ctx), res.Event()); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", res.AttemptID.String()).
			Msg("Failed to publish result")
	}
}

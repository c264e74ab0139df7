package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
)

// memDB is an in-memory stand-in for the session tables. Transactions are
// serialized and see a private copy of the state that is written back only
// when the callback succeeds.
type memDB struct {
	mu sync.Mutex

	progress    map[model.ProgressKey]model.Progress
	retakes     map[model.RetakeKey]bool
	results     map[uuid.UUID]model.TestResult
	submissions []model.Submission
	grades      []model.ManualGrade
	nextID      int64

	// saveErr makes SaveState fail, simulating an unavailable store.
	saveErr error
	// beforeUpsert runs inside Upsert, before the conflict check.
	beforeUpsert func(tx *memTx)
}

func newMemDB() *memDB {
	return &memDB{
		progress: map[model.ProgressKey]model.Progress{},
		retakes:  map[model.RetakeKey]bool{},
		results:  map[uuid.UUID]model.TestResult{},
	}
}

type memTx struct {
	db          *memDB
	progress    map[model.ProgressKey]model.Progress
	retakes     map[model.RetakeKey]bool
	results     map[uuid.UUID]model.TestResult
	submissions []model.Submission
	grades      []model.ManualGrade
	nextID      int64
}

func (db *memDB) RunInTx(ctx context.Context, fn func(repository.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	tx := &memTx{
		db:          db,
		progress:    map[model.ProgressKey]model.Progress{},
		retakes:     map[model.RetakeKey]bool{},
		results:     map[uuid.UUID]model.TestResult{},
		submissions: append([]model.Submission(nil), db.submissions...),
		grades:      append([]model.ManualGrade(nil), db.grades...),
		nextID:      db.nextID,
	}
	for k, v := range db.progress {
		tx.progress[k] = cloneProgress(v)
	}
	for k, v := range db.retakes {
		tx.retakes[k] = v
	}
	for k, v := range db.results {
		tx.results[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	db.progress, db.retakes, db.results = tx.progress, tx.retakes, tx.results
	db.submissions, db.grades, db.nextID = tx.submissions, tx.grades, tx.nextID
	return nil
}

func (tx *memTx) Progress() repository.ProgressStore { return memProgress{tx} }
func (tx *memTx) Retakes() repository.RetakeStore     { return memRetakes{tx} }
func (tx *memTx) Results() repository.ResultStore     { return memResults{tx} }

func cloneProgress(p model.Progress) model.Progress {
	c := p
	c.Questions = make([]model.SessionQuestion, len(p.Questions))
	for i, q := range p.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	c.Answers = append([]string(nil), p.Answers...)
	c.Marked = append([]int{}, p.Marked...)
	return c
}

// ─── progress ───────────────────────────────────────────────────────

type memProgress struct{ tx *memTx }

func (m memProgress) Get(_ context.Context, key model.ProgressKey) (*model.Progress, error) {
	p, ok := m.tx.progress[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := cloneProgress(p)
	return &c, nil
}

func (m memProgress) GetForUpdate(ctx context.Context, key model.ProgressKey) (*model.Progress, error) {
	return m.Get(ctx, key)
}

func (m memProgress) Upsert(_ context.Context, p *model.Progress) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	if hook := m.tx.db.beforeUpsert; hook != nil {
		hook(m.tx)
	}
	if existing, ok := m.tx.progress[p.Key()]; ok && !existing.Submitted {
		return false, nil
	}
	p.Submitted, p.SubmittedAt, p.UpdatedAt = false, nil, p.StartTime
	m.tx.progress[p.Key()] = cloneProgress(*p)
	return true, nil
}

func (m memProgress) SaveState(_ context.Context, p *model.Progress) (bool, error) {
	if err := m.tx.db.saveErr; err != nil {
		return false, err
	}
	if err := p.Validate(); err != nil {
		return false, err
	}
	cur, ok := m.tx.progress[p.Key()]
	if !ok || cur.Submitted || cur.AttemptID != p.AttemptID {
		return false, nil
	}
	cur.Answers = append([]string(nil), p.Answers...)
	cur.Marked = model.NormalizeMarked(p.Marked)
	cur.CurrentIndex = p.CurrentIndex
	m.tx.progress[p.Key()] = cur
	return true, nil
}

func (m memProgress) MarkSubmitted(_ context.Context, key model.ProgressKey, attemptID uuid.UUID, at time.Time) error {
	cur, ok := m.tx.progress[key]
	if !ok || cur.AttemptID != attemptID {
		return pgx.ErrNoRows
	}
	cur.Submitted = true
	cur.SubmittedAt = &at
	m.tx.progress[key] = cur
	return nil
}

func (m memProgress) Clear(_ context.Context, key model.ProgressKey) error {
	delete(m.tx.progress, key)
	return nil
}

func (m memProgress) ListByStudent(_ context.Context, studentID, schoolID int64) ([]model.Progress, error) {
	var list []model.Progress
	for k, p := range m.tx.progress {
		if k.StudentID == studentID && k.SchoolID == schoolID {
			list = append(list, cloneProgress(p))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SubjectID != list[j].SubjectID {
			return list[i].SubjectID < list[j].SubjectID
		}
		return list[i].TestType < list[j].TestType
	})
	return list, nil
}

// ─── retakes ────────────────────────────────────────────────────────

type memRetakes struct{ tx *memTx }

func (m memRetakes) Get(_ context.Context, key model.RetakeKey) (bool, error) {
	return m.tx.retakes[key], nil
}

func (m memRetakes) Set(_ context.Context, key model.RetakeKey, v bool) error {
	m.tx.retakes[key] = v
	return nil
}

func (m memRetakes) Consume(_ context.Context, key model.RetakeKey) (bool, error) {
	if !m.tx.retakes[key] {
		return false, nil
	}
	m.tx.retakes[key] = false
	return true, nil
}

func (m memRetakes) List(_ context.Context, schoolID int64, subjectID *int64) ([]model.RetakePermission, error) {
	var list []model.RetakePermission
	for k, v := range m.tx.retakes {
		if k.SchoolID != schoolID || (subjectID != nil && k.SubjectID != *subjectID) {
			continue
		}
		list = append(list, model.RetakePermission{StudentID: k.StudentID, SubjectID: k.SubjectID, SchoolID: k.SchoolID, CanRetake: v})
	}
	return list, nil
}

// ─── results ────────────────────────────────────────────────────────

type memResults struct{ tx *memTx }

func (m memResults) Create(_ context.Context, r *model.TestResult) error {
	if _, dup := m.tx.results[r.AttemptID]; dup {
		return fmt.Errorf("duplicate result for attempt %s", r.AttemptID)
	}
	m.tx.nextID++
	r.ID = m.tx.nextID
	m.tx.results[r.AttemptID] = *r
	return nil
}

func (m memResults) GetByAttempt(_ context.Context, attemptID uuid.UUID) (*model.TestResult, error) {
	r, ok := m.tx.results[attemptID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &r, nil
}

func (m memResults) CreateSubmissions(_ context.Context, subs []model.Submission) error {
	m.tx.submissions = append(m.tx.submissions, subs...)
	return nil
}

func (m memResults) CreateManualGrades(_ context.Context, grades []model.ManualGrade) error {
	m.tx.grades = append(m.tx.grades, grades...)
	return nil
}

func (m memResults) List(_ context.Context, f repository.ResultFilter, page, perPage int) ([]model.TestResult, int64, error) {
	var list []model.TestResult
	for _, r := range m.tx.results {
		if r.SchoolID == f.SchoolID {
			list = append(list, r)
		}
	}
	return list, int64(len(list)), nil
}

// ─── collaborators ──────────────────────────────────────────────────

type fakeBank struct {
	mu         sync.Mutex
	objective  []model.Question
	subjective []model.SubjectiveQuestion
	calls      int
}

func (b *fakeBank) GetObjectiveQuestions(context.Context, int64, string, int64) ([]model.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return append([]model.Question(nil), b.objective...), nil
}

func (b *fakeBank) GetSubjectiveQuestions(context.Context, int64, string, int64) ([]model.SubjectiveQuestion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return append([]model.SubjectiveQuestion(nil), b.subjective...), nil
}

func (b *fakeBank) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeDurations map[int64]int

func (d fakeDurations) GetDuration(_ context.Context, _ int64, _ string, subjectID int64) (int, error) {
	s, ok := d[subjectID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return s, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []model.ResultEvent
}

func (s *fakeSink) PublishResult(_ context.Context, ev model.ResultEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) Events() []model.ResultEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ResultEvent(nil), s.events...)
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []model.AutosaveJob
	err  error
}

func (q *fakeQueue) EnqueueAutosave(_ context.Context, job model.AutosaveJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// identityShuffle keeps bank order so tests can predict positions.
func identityShuffle(int, func(i, j int)) {}

// reverseShuffle reverses the slice, a permutation that is easy to assert on.
func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

var errStoreDown = errors.New("connection refused")

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so a repository can run
// either standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// ProgressStore persists attempts keyed by (student, subject, school, test type).
// Lookups of a missing row return pgx.ErrNoRows.
type ProgressStore interface {
	Get(ctx context.Context, key model.ProgressKey) (*model.Progress, error)
	GetForUpdate(ctx context.Context, key model.ProgressKey) (*model.Progress, error)
	// Upsert inserts p, or replaces an existing row only if that row is
	// submitted. It reports false when an in-progress row already holds the key.
	Upsert(ctx context.Context, p *model.Progress) (bool, error)
	// SaveState writes answers, marks and cursor for the attempt p.AttemptID
	// while it is still in progress. It reports false when nothing matched.
	SaveState(ctx context.Context, p *model.Progress) (bool, error)
	MarkSubmitted(ctx context.Context, key model.ProgressKey, attemptID uuid.UUID, at time.Time) error
	Clear(ctx context.Context, key model.ProgressKey) error
	ListByStudent(ctx context.Context, studentID, schoolID int64) ([]model.Progress, error)
}

// RetakeStore holds single-use retake grants.
type RetakeStore interface {
	Get(ctx context.Context, key model.RetakeKey) (bool, error)
	Set(ctx context.Context, key model.RetakeKey, canRetake bool) error
	// Consume flips a true grant back to false and reports whether it did.
	Consume(ctx context.Context, key model.RetakeKey) (bool, error)
	List(ctx context.Context, schoolID int64, subjectID *int64) ([]model.RetakePermission, error)
}

// ResultStore records write-once attempt outcomes.
type ResultStore interface {
	Create(ctx context.Context, r *model.TestResult) error
	GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.TestResult, error)
	CreateSubmissions(ctx context.Context, subs []model.Submission) error
	CreateManualGrades(ctx context.Context, grades []model.ManualGrade) error
	List(ctx context.Context, f ResultFilter, page, perPage int) ([]model.TestResult, int64, error)
}

// Stores groups the stores that take part in a session transaction.
type Stores interface {
	Progress() ProgressStore
	Retakes() RetakeStore
	Results() ResultStore
}

// TxRunner runs fn inside one database transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(Stores) error) error
}

type stores struct {
	progress *ProgressRepository
	retakes  *RetakeRepository
	results  *ResultRepository
}

// NewStores binds the session stores to db.
func NewStores(db DBTX) Stores {
	return &stores{
		progress: NewProgressRepository(db),
		retakes:  NewRetakeRepository(db),
		results:  NewResultRepository(db),
	}
}

func (s *stores) Progress() ProgressStore { return s.progress }
func (s *stores) Retakes() RetakeStore     { return s.retakes }
func (s *stores) Results() ResultStore     { return s.results }

// TxManager runs session work in pgx transactions.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a new TxManager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx implements TxRunner.
func (m *TxManager) RunInTx(ctx context.Context, fn func(Stores) error) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(NewStores(tx))
	})
}

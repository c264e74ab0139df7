package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// DurationProvider looks up the configured time allowance of a test.
// A missing configuration returns pgx.ErrNoRows.
type DurationProvider interface {
	GetDuration(ctx context.Context, schoolID int64, className string, subjectID int64) (int, error)
}

// DurationRepository handles test_durations data access.
type DurationRepository struct {
	pool *pgxpool.Pool
}

// NewDurationRepository creates a new DurationRepository.
func NewDurationRepository(pool *pgxpool.Pool) *DurationRepository {
	return &DurationRepository{pool: pool}
}

// GetDuration implements DurationProvider.
func (r *DurationRepository) GetDuration(ctx context.Context, schoolID int64, className string, subjectID int64) (int, error) {
	var seconds int
	err := r.pool.QueryRow(ctx,
		`SELECT duration_seconds FROM test_durations
		 WHERE school_id = $1 AND class_name = $2 AND subject_id = $3`,
		schoolID, className, subjectID,
	).Scan(&seconds)
	return seconds, err
}

// Set creates or replaces a duration.
func (r *DurationRepository) Set(ctx context.Context, d *model.TestDuration) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO test_durations (school_id, class_name, subject_id, duration_seconds)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (school_id, class_name, subject_id) DO UPDATE
		 SET duration_seconds = EXCLUDED.duration_seconds`,
		d.SchoolID, d.ClassName, d.SubjectID, d.DurationSeconds,
	)
	return err
}

// ListBySchool retrieves every configured duration of a school.
func (r *DurationRepository) ListBySchool(ctx context.Context, schoolID int64) ([]model.TestDuration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT school_id, class_name, subject_id, duration_seconds
		 FROM test_durations WHERE school_id = $1
		 ORDER BY class_name, subject_id`, schoolID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.TestDuration
	for rows.Next() {
		var d model.TestDuration
		if err := rows.Scan(&d.SchoolID, &d.ClassName, &d.SubjectID, &d.DurationSeconds); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

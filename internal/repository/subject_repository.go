package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// SubjectRepository handles subject data access.
type SubjectRepository struct {
	pool *pgxpool.Pool
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(pool *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{pool: pool}
}

// ListByClass retrieves the subjects taught to a class.
func (r *SubjectRepository) ListByClass(ctx context.Context, schoolID int64, className string) ([]model.Subject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, class_name, school_id
		 FROM subjects WHERE school_id = $1 AND class_name = $2
		 ORDER BY name`, schoolID, className,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.ClassName, &s.SchoolID); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Create inserts a new subject, or returns the id of the existing one with
// the same name in the class.
func (r *SubjectRepository) Create(ctx context.Context, s *model.Subject) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO subjects (name, class_name, school_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (school_id, class_name, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		s.Name, s.ClassName, s.SchoolID,
	).Scan(&s.ID)
}

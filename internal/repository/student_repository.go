package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smarttest/smarttest-backend/internal/model"
)

var ErrDuplicateAccessCode = errors.New("student with this access code already exists in the school")

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, access_code, name, class_name, school_id, created_at
		 FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.AccessCode, &s.Name, &s.ClassName, &s.SchoolID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByAccessCode retrieves a student by the access code issued by their school.
func (r *StudentRepository) GetByAccessCode(ctx context.Context, schoolID int64, code string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, access_code, name, class_name, school_id, created_at
		 FROM students WHERE school_id = $1 AND access_code = $2`, schoolID, code,
	).Scan(&s.ID, &s.AccessCode, &s.Name, &s.ClassName, &s.SchoolID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (access_code, name, class_name, school_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		s.AccessCode, s.Name, s.ClassName, s.SchoolID,
	).Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateAccessCode
		}
		return err
	}
	return nil
}

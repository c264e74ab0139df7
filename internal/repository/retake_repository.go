package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// RetakeRepository handles retake permission data access.
type RetakeRepository struct {
	db DBTX
}

// NewRetakeRepository creates a new RetakeRepository.
func NewRetakeRepository(db DBTX) *RetakeRepository {
	return &RetakeRepository{db: db}
}

// Get reports whether a retake is currently granted. A missing row means no.
func (r *RetakeRepository) Get(ctx context.Context, key model.RetakeKey) (bool, error) {
	var can bool
	err := r.db.QueryRow(ctx,
		`SELECT can_retake FROM retakes
		 WHERE student_id = $1 AND subject_id = $2 AND school_id = $3`,
		key.StudentID, key.SubjectID, key.SchoolID,
	).Scan(&can)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return can, err
}

// Set grants or revokes a retake.
func (r *RetakeRepository) Set(ctx context.Context, key model.RetakeKey, canRetake bool) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO retakes (student_id, subject_id, school_id, can_retake, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (student_id, subject_id, school_id) DO UPDATE
		 SET can_retake = EXCLUDED.can_retake, updated_at = NOW()`,
		key.StudentID, key.SubjectID, key.SchoolID, canRetake,
	)
	return err
}

// Consume implements RetakeStore. Two transactions racing on the same grant
// serialize on the row and only the first sees can_retake = TRUE.
func (r *RetakeRepository) Consume(ctx context.Context, key model.RetakeKey) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE retakes SET can_retake = FALSE, updated_at = NOW()
		 WHERE student_id = $1 AND subject_id = $2 AND school_id = $3 AND can_retake`,
		key.StudentID, key.SubjectID, key.SchoolID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// List returns the retake rows of a school, optionally for one subject.
func (r *RetakeRepository) List(ctx context.Context, schoolID int64, subjectID *int64) ([]model.RetakePermission, error) {
	query := `SELECT student_id, subject_id, school_id, can_retake, updated_at
		 FROM retakes WHERE school_id = $1`
	args := []any{schoolID}
	if subjectID != nil {
		args = append(args, *subjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	query += " ORDER BY subject_id, student_id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.RetakePermission
	for rows.Next() {
		var p model.RetakePermission
		if err := rows.Scan(&p.StudentID, &p.SubjectID, &p.SchoolID, &p.CanRetake, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

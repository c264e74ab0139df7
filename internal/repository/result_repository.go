package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// ResultFilter narrows the admin results listing.
type ResultFilter struct {
	SchoolID  int64
	SubjectID *int64
	ClassName *string
	TestType  *model.TestType
	StudentID *int64
}

const resultColumns = `id, attempt_id, student_id, subject_id, school_id, class_name, test_type,
	score, total, percentage, status, breakdown, taken_at`

// ResultRepository handles test_results, submissions and manual_grades.
type ResultRepository struct {
	db DBTX
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create inserts the result of an attempt.
func (r *ResultRepository) Create(ctx context.Context, res *model.TestResult) error {
	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO test_results (attempt_id, student_id, subject_id, school_id, class_name, test_type,
		                           score, total, percentage, status, breakdown, taken_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		res.AttemptID, res.StudentID, res.SubjectID, res.SchoolID, res.ClassName, res.TestType,
		res.Score, res.Total, res.Percentage, res.Status, breakdown, res.TakenAt,
	).Scan(&res.ID)
}

// GetByAttempt retrieves the result recorded for an attempt.
func (r *ResultRepository) GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.TestResult, error) {
	return scanResult(r.db.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM test_results WHERE attempt_id = $1`, attemptID))
}

// CreateSubmissions bulk-inserts the graded objective answers.
func (r *ResultRepository) CreateSubmissions(ctx context.Context, subs []model.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"submissions"},
		[]string{"attempt_id", "student_id", "question_id", "selected_answer", "correct"},
		pgx.CopyFromSlice(len(subs), func(i int) ([]any, error) {
			s := subs[i]
			return []any{s.AttemptID, s.StudentID, s.QuestionID, s.SelectedAnswer, s.Correct}, nil
		}),
	)
	return err
}

// CreateManualGrades bulk-inserts subjective answers awaiting review.
func (r *ResultRepository) CreateManualGrades(ctx context.Context, grades []model.ManualGrade) error {
	if len(grades) == 0 {
		return nil
	}
	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"manual_grades"},
		[]string{"attempt_id", "student_id", "question_id", "submitted_text", "max_marks", "status"},
		pgx.CopyFromSlice(len(grades), func(i int) ([]any, error) {
			g := grades[i]
			return []any{g.AttemptID, g.StudentID, g.QuestionID, g.SubmittedText, g.MaxMarks, g.Status}, nil
		}),
	)
	return err
}

// List retrieves results with optional filters and pagination, newest first.
func (r *ResultRepository) List(ctx context.Context, f ResultFilter, page, perPage int) ([]model.TestResult, int64, error) {
	offset := (page - 1) * perPage

	where := " FROM test_results WHERE school_id = $1"
	args := []any{f.SchoolID}

	if f.SubjectID != nil {
		args = append(args, *f.SubjectID)
		where += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if f.ClassName != nil && *f.ClassName != "" {
		args = append(args, *f.ClassName)
		where += fmt.Sprintf(" AND class_name = $%d", len(args))
	}
	if f.TestType != nil {
		args = append(args, *f.TestType)
		where += fmt.Sprintf(" AND test_type = $%d", len(args))
	}
	if f.StudentID != nil {
		args = append(args, *f.StudentID)
		where += fmt.Sprintf(" AND student_id = $%d", len(args))
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, offset)
	rows, err := r.db.Query(ctx,
		"SELECT "+resultColumns+where+fmt.Sprintf(" ORDER BY taken_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []model.TestResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *res)
	}
	return list, total, rows.Err()
}

func scanResult(row pgx.Row) (*model.TestResult, error) {
	res := &model.TestResult{}
	var breakdown []byte
	err := row.Scan(
		&res.ID, &res.AttemptID, &res.StudentID, &res.SubjectID, &res.SchoolID, &res.ClassName, &res.TestType,
		&res.Score, &res.Total, &res.Percentage, &res.Status, &breakdown, &res.TakenAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(breakdown, &res.Breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown of attempt %s: %w", res.AttemptID, err)
	}
	if res.Breakdown == nil {
		res.Breakdown = []model.BreakdownItem{}
	}
	return res, nil
}

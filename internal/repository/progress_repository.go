package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// ErrCorruptProgress wraps a stored attempt whose columns cannot be decoded.
var ErrCorruptProgress = errors.New("corrupt progress row")

const progressColumns = `attempt_id, student_id, access_code, subject_id, school_id, class_name, test_type,
	questions, answers, marked, current_index, start_time, duration_seconds,
	submitted, submitted_at, updated_at`

// ProgressRepository handles test_progress data access.
type ProgressRepository struct {
	db DBTX
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(db DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get loads the attempt stored under key.
func (r *ProgressRepository) Get(ctx context.Context, key model.ProgressKey) (*model.Progress, error) {
	return r.get(ctx, key, "")
}

// GetForUpdate loads the attempt under key and locks the row until the
// surrounding transaction ends.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, key model.ProgressKey) (*model.Progress, error) {
	return r.get(ctx, key, " FOR UPDATE")
}

func (r *ProgressRepository) get(ctx context.Context, key model.ProgressKey, suffix string) (*model.Progress, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+progressColumns+`
		 FROM test_progress
		 WHERE student_id = $1 AND subject_id = $2 AND school_id = $3 AND test_type = $4`+suffix,
		key.StudentID, key.SubjectID, key.SchoolID, key.TestType,
	)
	return scanProgress(row)
}

// Upsert implements ProgressStore.
func (r *ProgressRepository) Upsert(ctx context.Context, p *model.Progress) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	questions, err := json.Marshal(p.Questions)
	if err != nil {
		return false, fmt.Errorf("encode questions: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO test_progress (attempt_id, student_id, access_code, subject_id, school_id, class_name, test_type,
		                            questions, answers, marked, current_index, start_time, duration_seconds,
		                            submitted, submitted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, NULL, NOW())
		 ON CONFLICT (student_id, subject_id, school_id, test_type) DO UPDATE
		 SET attempt_id = EXCLUDED.attempt_id,
		     access_code = EXCLUDED.access_code,
		     class_name = EXCLUDED.class_name,
		     questions = EXCLUDED.questions,
		     answers = EXCLUDED.answers,
		     marked = EXCLUDED.marked,
		     current_index = EXCLUDED.current_index,
		     start_time = EXCLUDED.start_time,
		     duration_seconds = EXCLUDED.duration_seconds,
		     submitted = FALSE,
		     submitted_at = NULL,
		     updated_at = NOW()
		 WHERE test_progress.submitted
		 RETURNING updated_at`,
		p.AttemptID, p.StudentID, p.AccessCode, p.SubjectID, p.SchoolID, p.ClassName, p.TestType,
		questions, p.Answers, model.NormalizeMarked(p.Marked), p.CurrentIndex, p.StartTime, p.DurationSeconds,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.Submitted = false
	p.SubmittedAt = nil
	return true, nil
}

// SaveState implements ProgressStore.
func (r *ProgressRepository) SaveState(ctx context.Context, p *model.Progress) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	p.Marked = model.NormalizeMarked(p.Marked)

	tag, err := r.db.Exec(ctx,
		`UPDATE test_progress
		 SET answers = $1, marked = $2, current_index = $3, updated_at = NOW()
		 WHERE student_id = $4 AND subject_id = $5 AND school_id = $6 AND test_type = $7
		   AND attempt_id = $8 AND NOT submitted`,
		p.Answers, p.Marked, p.CurrentIndex,
		p.StudentID, p.SubjectID, p.SchoolID, p.TestType, p.AttemptID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSubmitted flags the attempt as terminal.
func (r *ProgressRepository) MarkSubmitted(ctx context.Context, key model.ProgressKey, attemptID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE test_progress
		 SET submitted = TRUE, submitted_at = $1, updated_at = NOW()
		 WHERE student_id = $2 AND subject_id = $3 AND school_id = $4 AND test_type = $5
		   AND attempt_id = $6`,
		at, key.StudentID, key.SubjectID, key.SchoolID, key.TestType, attemptID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Clear deletes the row under key.
func (r *ProgressRepository) Clear(ctx context.Context, key model.ProgressKey) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM test_progress
		 WHERE student_id = $1 AND subject_id = $2 AND school_id = $3 AND test_type = $4`,
		key.StudentID, key.SubjectID, key.SchoolID, key.TestType,
	)
	return err
}

// ListByStudent retrieves every attempt a student holds in a school.
func (r *ProgressRepository) ListByStudent(ctx context.Context, studentID, schoolID int64) ([]model.Progress, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+progressColumns+`
		 FROM test_progress
		 WHERE student_id = $1 AND school_id = $2
		 ORDER BY subject_id, test_type`, studentID, schoolID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func scanProgress(row pgx.Row) (*model.Progress, error) {
	p := &model.Progress{}
	var questions []byte
	err := row.Scan(
		&p.AttemptID, &p.StudentID, &p.AccessCode, &p.SubjectID, &p.SchoolID, &p.ClassName, &p.TestType,
		&questions, &p.Answers, &p.Marked, &p.CurrentIndex, &p.StartTime, &p.DurationSeconds,
		&p.Submitted, &p.SubmittedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &p.Questions); err != nil {
		return nil, fmt.Errorf("%w: attempt %s: decode questions: %v", ErrCorruptProgress, p.AttemptID, err)
	}
	if len(p.Answers) != len(p.Questions) {
		return nil, fmt.Errorf("%w: attempt %s: %d answers for %d questions",
			ErrCorruptProgress, p.AttemptID, len(p.Answers), len(p.Questions))
	}
	if p.Marked == nil {
		p.Marked = []int{}
	}
	return p, nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// QuestionBank supplies the question pool of a class and subject.
// Archived questions are never returned.
type QuestionBank interface {
	GetObjectiveQuestions(ctx context.Context, schoolID int64, className string, subjectID int64) ([]model.Question, error)
	GetSubjectiveQuestions(ctx context.Context, schoolID int64, className string, subjectID int64) ([]model.SubjectiveQuestion, error)
}

// QuestionBankRepository reads the question bank from PostgreSQL.
type QuestionBankRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionBankRepository creates a new QuestionBankRepository.
func NewQuestionBankRepository(pool *pgxpool.Pool) *QuestionBankRepository {
	return &QuestionBankRepository{pool: pool}
}

// GetObjectiveQuestions implements QuestionBank.
func (r *QuestionBankRepository) GetObjectiveQuestions(ctx context.Context, schoolID int64, className string, subjectID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, class_name, subject_id, school_id, text, options, answer, archived
		 FROM questions
		 WHERE school_id = $1 AND class_name = $2 AND subject_id = $3 AND NOT archived
		 ORDER BY id`, schoolID, className, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ClassName, &q.SubjectID, &q.SchoolID, &q.Text, &q.Options, &q.Answer, &q.Archived); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// GetSubjectiveQuestions implements QuestionBank.
func (r *QuestionBankRepository) GetSubjectiveQuestions(ctx context.Context, schoolID int64, className string, subjectID int64) ([]model.SubjectiveQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, class_name, subject_id, school_id, text, marks, archived
		 FROM subjective_questions
		 WHERE school_id = $1 AND class_name = $2 AND subject_id = $3 AND NOT archived
		 ORDER BY id`, schoolID, className, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.SubjectiveQuestion
	for rows.Next() {
		var q model.SubjectiveQuestion
		if err := rows.Scan(&q.ID, &q.ClassName, &q.SubjectID, &q.SchoolID, &q.Text, &q.Marks, &q.Archived); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// ImportObjective bulk loads objective questions with COPY.
func (r *QuestionBankRepository) ImportObjective(ctx context.Context, qs []model.Question) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"class_name", "subject_id", "school_id", "text", "options", "answer"},
		pgx.CopyFromSlice(len(qs), func(i int) ([]any, error) {
			q := qs[i]
			return []any{q.ClassName, q.SubjectID, q.SchoolID, q.Text, q.Options, q.Answer}, nil
		}),
	)
}

// ImportSubjective bulk loads subjective questions with COPY.
func (r *QuestionBankRepository) ImportSubjective(ctx context.Context, qs []model.SubjectiveQuestion) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"subjective_questions"},
		[]string{"class_name", "subject_id", "school_id", "text", "marks"},
		pgx.CopyFromSlice(len(qs), func(i int) ([]any, error) {
			q := qs[i]
			return []any{q.ClassName, q.SubjectID, q.SchoolID, q.Text, q.Marks}, nil
		}),
	)
}

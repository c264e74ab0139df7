package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus tracks whether a result is final.
type ResultStatus string

const (
	ResultStatusGraded        ResultStatus = "GRADED"
	ResultStatusPendingReview ResultStatus = "PENDING_REVIEW"
)

// BreakdownItem is the per-question outcome of an objective attempt.
type BreakdownItem struct {
	QuestionID    int64  `json:"question_id"`
	QuestionText  string `json:"question_text"`
	YourAnswer    string `json:"your_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

// TestResult is the write-once outcome of an attempt.
type TestResult struct {
	ID         int64           `json:"id"`
	AttemptID  uuid.UUID       `json:"attempt_id"`
	StudentID  int64           `json:"student_id"`
	SubjectID  int64           `json:"subject_id"`
	SchoolID   int64           `json:"school_id"`
	ClassName  string          `json:"class_name"`
	TestType   TestType        `json:"test_type"`
	Score      *int            `json:"score"`
	Total      int             `json:"total"`
	Percentage *float64        `json:"percentage"`
	Status     ResultStatus    `json:"status"`
	Breakdown  []BreakdownItem `json:"breakdown"`
	TakenAt    time.Time       `json:"taken_at"`
}

// Submission is one recorded objective answer.
type Submission struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	StudentID      int64     `json:"student_id"`
	QuestionID     int64     `json:"question_id"`
	SelectedAnswer string    `json:"selected_answer"`
	Correct        bool      `json:"correct"`
}

// ManualGrade is a subjective answer awaiting a reviewer's marks.
type ManualGrade struct {
	AttemptID     uuid.UUID    `json:"attempt_id"`
	StudentID     int64        `json:"student_id"`
	QuestionID    int64        `json:"question_id"`
	SubmittedText string       `json:"submitted_text"`
	MaxMarks      int          `json:"max_marks"`
	Marks         *int         `json:"marks"`
	Status        ResultStatus `json:"status"`
}

// ResultEvent is published to the result sink once a result is committed.
type ResultEvent struct {
	AttemptID  uuid.UUID    `json:"attempt_id"`
	StudentID  int64        `json:"student_id"`
	SubjectID  int64        `json:"subject_id"`
	SchoolID   int64        `json:"school_id"`
	ClassName  string       `json:"class_name"`
	TestType   TestType     `json:"test_type"`
	Status     ResultStatus `json:"status"`
	Score      *int         `json:"score"`
	Total      int          `json:"total"`
	Percentage *float64     `json:"percentage"`
	TakenAt    time.Time    `json:"taken_at"`
}

// Event builds the sink event for r.
func (r *TestResult) Event() ResultEvent {
	return ResultEvent{
		AttemptID:  r.AttemptID,
		StudentID:  r.StudentID,
		SubjectID:  r.SubjectID,
		SchoolID:   r.SchoolID,
		ClassName:  r.ClassName,
		TestType:   r.TestType,
		Status:     r.Status,
		Score:      r.Score,
		Total:      r.Total,
		Percentage: r.Percentage,
		TakenAt:    r.TakenAt,
	}
}

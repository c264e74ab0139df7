package model

import "time"

// RetakePermission records whether a student may start over on a subject.
type RetakePermission struct {
	StudentID int64     `json:"student_id"`
	SubjectID int64     `json:"subject_id"`
	SchoolID  int64     `json:"school_id"`
	CanRetake bool      `json:"can_retake"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetRetakeRequest grants or revokes a retake.
type SetRetakeRequest struct {
	StudentID int64 `json:"student_id" binding:"required,min=1"`
	SubjectID int64 `json:"subject_id" binding:"required,min=1"`
	CanRetake *bool `json:"can_retake" binding:"required"`
}

// ClearProgressRequest discards a student's attempt.
type ClearProgressRequest struct {
	StudentID int64    `json:"student_id" binding:"required,min=1"`
	SubjectID int64    `json:"subject_id" binding:"required,min=1"`
	TestType  TestType `json:"test_type" binding:"required,test_type"`
}

// TestDuration is the configured time allowance for a class and subject.
type TestDuration struct {
	SchoolID        int64  `json:"school_id"`
	ClassName       string `json:"class_name"`
	SubjectID       int64  `json:"subject_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

// SetDurationRequest configures a duration.
type SetDurationRequest struct {
	ClassName       string `json:"class_name" binding:"required,min=1,max=50"`
	SubjectID       int64  `json:"subject_id" binding:"required,min=1"`
	DurationSeconds int    `json:"duration_seconds" binding:"required,min=60,max=86400"`
}

// LeaderboardEntry is a student's best result on a subject.
type LeaderboardEntry struct {
	StudentID      int64     `json:"student_id"`
	StudentName    string    `json:"student_name"`
	SubjectID      int64     `json:"subject_id"`
	SchoolID       int64     `json:"school_id"`
	ClassName      string    `json:"class_name"`
	BestPercentage float64   `json:"best_percentage"`
	Attempts       int       `json:"attempts"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RetakeListQuery filters the retake listing.
type RetakeListQuery struct {
	SubjectID *int64 `form:"subject_id" binding:"omitempty,min=1"`
}

// ResultListQuery filters and pages the results listing.
type ResultListQuery struct {
	SubjectID *int64    `form:"subject_id" binding:"omitempty,min=1"`
	StudentID *int64    `form:"student_id" binding:"omitempty,min=1"`
	ClassName *string   `form:"class_name" binding:"omitempty,max=50"`
	TestType  *TestType `form:"test_type" binding:"omitempty,test_type"`
	Page      int       `form:"page" binding:"omitempty,min=1"`
	PerPage   int       `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// LeaderboardQuery selects a subject leaderboard.
type LeaderboardQuery struct {
	SubjectID int64   `form:"subject_id" binding:"required,min=1"`
	ClassName *string `form:"class_name" binding:"omitempty,max=50"`
	Limit     int     `form:"limit" binding:"omitempty,min=1,max=500"`
}

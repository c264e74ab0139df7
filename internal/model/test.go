package model

import "fmt"

// TestType distinguishes auto-graded tests from manually graded ones.
type TestType string

const (
	TestTypeObjective  TestType = "objective"
	TestTypeSubjective TestType = "subjective"
)

// TestTypes lists every supported test type in display order.
var TestTypes = []TestType{TestTypeObjective, TestTypeSubjective}

// Valid reports whether t is a known test type.
func (t TestType) Valid() bool {
	return t == TestTypeObjective || t == TestTypeSubjective
}

// ProgressKey identifies the single Progress row a student may hold for a test.
type ProgressKey struct {
	StudentID int64    `json:"student_id"`
	SubjectID int64    `json:"subject_id"`
	SchoolID  int64    `json:"school_id"`
	TestType  TestType `json:"test_type"`
}

// RetakeKey returns the retake permission key covering this progress key.
// Retake grants are per subject and apply to both test types.
func (k ProgressKey) RetakeKey() RetakeKey {
	return RetakeKey{StudentID: k.StudentID, SubjectID: k.SubjectID, SchoolID: k.SchoolID}
}

func (k ProgressKey) String() string {
	return fmt.Sprintf("student=%d subject=%d school=%d type=%s", k.StudentID, k.SubjectID, k.SchoolID, k.TestType)
}

// RetakeKey identifies a retake permission row.
type RetakeKey struct {
	StudentID int64 `json:"student_id"`
	SubjectID int64 `json:"subject_id"`
	SchoolID  int64 `json:"school_id"`
}

// StartMode describes how a start request will be (or was) satisfied.
type StartMode string

const (
	StartFresh  StartMode = "fresh"
	StartResume StartMode = "resume"
	StartRetake StartMode = "retake"
)

// StudentRef is the identity of the caller as carried by the student token.
type StudentRef struct {
	ID         int64
	SchoolID   int64
	ClassName  string
	AccessCode string
}

// TestPath is the (subject, test type) pair addressed by student test routes.
type TestPath struct {
	SubjectID int64  `uri:"subject_id" binding:"required,min=1"`
	TestType  string `uri:"test_type" binding:"required,test_type"`
}

package model

// Subject is referenced by id; the name is only used for display.
type Subject struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
	SchoolID  int64  `json:"school_id"`
}

// LobbyStatus summarises where a student stands on one test.
type LobbyStatus string

const (
	LobbyNotStarted      LobbyStatus = "NOT_STARTED"
	LobbyInProgress      LobbyStatus = "IN_PROGRESS"
	LobbySubmitted       LobbyStatus = "SUBMITTED"
	LobbyRetakeAvailable LobbyStatus = "RETAKE_AVAILABLE"
)

// LobbyEntry is one (subject, test type) tile in the student lobby.
type LobbyEntry struct {
	SubjectID        int64       `json:"subject_id"`
	SubjectName      string      `json:"subject_name"`
	TestType         TestType    `json:"test_type"`
	Status           LobbyStatus `json:"status"`
	RemainingSeconds *int        `json:"remaining_seconds,omitempty"`
}

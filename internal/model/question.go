package model

// Question is an objective question in the bank.
type Question struct {
	ID        int64    `json:"id"`
	ClassName string   `json:"class_name"`
	SubjectID int64    `json:"subject_id"`
	SchoolID  int64    `json:"school_id"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	Answer    string   `json:"answer"`
	Archived  bool     `json:"archived"`
}

// SubjectiveQuestion is a free-text question graded by a reviewer.
type SubjectiveQuestion struct {
	ID        int64  `json:"id"`
	ClassName string `json:"class_name"`
	SubjectID int64  `json:"subject_id"`
	SchoolID  int64  `json:"school_id"`
	Text      string `json:"text"`
	Marks     int    `json:"marks"`
	Archived  bool   `json:"archived"`
}

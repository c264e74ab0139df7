package model

import (
	"time"

	"github.com/google/uuid"
)

// AutosaveSnapshot is the client's periodic copy of its working state.
type AutosaveSnapshot struct {
	AttemptID    uuid.UUID `json:"attempt_id"`
	Answers      []string  `json:"answers"`
	CurrentIndex int       `json:"current_index"`
	Marked       []int     `json:"marked"`
}

// AutosaveRequest is the payload of the autosave endpoint.
type AutosaveRequest struct {
	AttemptID    uuid.UUID `json:"attempt_id" binding:"required"`
	Answers      []string  `json:"answers" binding:"required,dive,max=5000"`
	CurrentIndex int       `json:"current_index" binding:"min=0"`
	Marked       []int     `json:"marked"`
}

// Snapshot converts the request into a snapshot.
func (r AutosaveRequest) Snapshot() AutosaveSnapshot {
	return AutosaveSnapshot{AttemptID: r.AttemptID, Answers: r.Answers, CurrentIndex: r.CurrentIndex, Marked: r.Marked}
}

// AutosaveStatus tells the client whether its snapshot hit the store.
type AutosaveStatus string

const (
	AutosaveSaved  AutosaveStatus = "saved"
	AutosaveQueued AutosaveStatus = "queued"
)

// AutosaveJob is a snapshot waiting in the retry queue.
type AutosaveJob struct {
	Key      ProgressKey      `json:"key"`
	Snapshot AutosaveSnapshot `json:"snapshot"`
	QueuedAt time.Time        `json:"queued_at"`
	Retries  int              `json:"retries,omitempty"`
}

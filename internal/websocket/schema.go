package websocket

import (
	"github.com/google/uuid"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionSelect   Action = "select"
	ActionNavigate Action = "navigate"
	ActionMark     Action = "mark"
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is every client message. Fields not used by the action are ignored.
type Request struct {
	Action      Action    `json:"action"`
	Index       *int      `json:"index,omitempty"`
	Answer      string    `json:"answer,omitempty"`
	OptionIndex *int      `json:"option_index,omitempty"`
	AttemptID   uuid.UUID `json:"attempt_id,omitempty"`
	Answers     []string  `json:"answers,omitempty"`
	Current     int       `json:"current_index,omitempty"`
	Marked      []int     `json:"marked,omitempty"`
}

// Snapshot returns the autosave payload carried by an autosave request.
func (r *Request) Snapshot() model.AutosaveSnapshot {
	return model.AutosaveSnapshot{
		AttemptID:    r.AttemptID,
		Answers:      r.Answers,
		CurrentIndex: r.Current,
		Marked:       r.Marked,
	}
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventTick    Event = "tick"
	EventGraded  Event = "graded"
	EventPong    Event = "pong"
)

// SuccessResponse acknowledges an action.
type SuccessResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
	Index  *int   `json:"index,omitempty"`
	Answer string `json:"answer,omitempty"`
	Marked *bool  `json:"marked,omitempty"`
	Status string `json:"status,omitempty"`
}

// TickResponse carries the countdown.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
	Warning          bool  `json:"warning"`
}

// GradedResponse is sent once the attempt is submitted, by the student or by
// the timer.
type GradedResponse struct {
	Event  Event             `json:"event"`
	TimeUp bool              `json:"time_up"`
	Result *model.TestResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

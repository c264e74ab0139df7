package model

import "time"

// School owns students, admins and the question bank.
type School struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

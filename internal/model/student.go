package model

import "time"

// Student represents a student identified by a per-school access code.
type Student struct {
	ID         int64     `json:"id"`
	AccessCode string    `json:"access_code"`
	Name       string    `json:"name"`
	ClassName  string    `json:"class_name"`
	SchoolID   int64     `json:"school_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	SchoolID   int64  `json:"school_id" binding:"required,min=1"`
	AccessCode string `json:"access_code" binding:"required,min=3,max=32"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

package models

import "time"

// Session is a refresh token issued at login.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

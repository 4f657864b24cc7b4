package domain

import "time"

// Attempt records a single authentication attempt, successful or not.
// UserID is nil when the submitted username did not match any account.
type Attempt struct {
	ID        string
	UserID    *string
	IP        string
	Success   bool
	CreatedAt time.Time
}

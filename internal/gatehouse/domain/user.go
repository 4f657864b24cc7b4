package domain

import "time"

type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string  // argon2 encoded
	TOTPSecret       *string // base32 encoded (nullable)
	TwoFactorEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasTOTP reports whether the user has two-factor authentication enrolled.
// Both the flag and a stored secret are required; an enabled flag with no
// secret is treated as not enrolled rather than locking the user out.
func (u *User) HasTOTP() bool {
	return u.TwoFactorEnabled && u.TOTPSecret != nil && *u.TOTPSecret != ""
}

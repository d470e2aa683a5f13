package model

import "time"

// User is an account identified solely by email. There is no password:
// ownership of the inbox is the credential, so email_verified flips on the
// first successful magic token verification.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

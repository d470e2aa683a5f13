package model

import (
	"strings"
	"time"
)

type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsed     time.Time `json:"last_used"`
}

// MagicToken is a single-use, time-limited proof of email ownership. The
// stored value is "<6-digit code>-<random suffix>"; the leading code is what
// users type instead of clicking the link.
type MagicToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// CodePrefix returns the human-enterable 6-digit segment of the token value,
// or "" if the value has no separator.
func (t *MagicToken) CodePrefix() string {
	if i := strings.IndexByte(t.Token, '-'); i > 0 {
		return t.Token[:i]
	}
	return ""
}

// Package token issues and verifies the credentials used by the auth flow:
// signed access/refresh tokens and the single-use magic token values sent by
// email. It has no side effects beyond the signing secret and the clock.
package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTTL is how long a signed access token stays valid.
	AccessTTL = 15 * time.Minute
	// RefreshTTL is how long a refresh token and its backing session stay valid.
	RefreshTTL = 30 * 24 * time.Hour
	// MagicTokenTTL is how long an emailed magic token stays redeemable.
	MagicTokenTTL = 15 * time.Minute
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
	UserID    string `json:"uid"`
	Email     string `json:"email"`
}

// RefreshClaims is the payload of a refresh token. SessionID ties the token
// to a revocable session row.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
}

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Codec signs and verifies tokens with a process-wide HMAC secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// IssueAccessToken returns a signed access token for the user, valid for AccessTTL.
func (c *Codec) IssueAccessToken(userID, email string) (string, error) {
	now := c.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTTL)),
		},
		TokenType: typeAccess,
		UserID:    userID,
		Email:     email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// IssueRefreshToken returns a signed refresh token bound to the session,
// valid for RefreshTTL.
func (c *Codec) IssueRefreshToken(userID, sessionID string) (string, error) {
	now := c.now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTTL)),
		},
		TokenType: typeRefresh,
		UserID:    userID,
		SessionID: sessionID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// VerifyAccessToken returns the claims of a valid access token, or nil for
// any malformed, tampered, or expired input. Callers cannot distinguish why
// verification failed.
func (c *Codec) VerifyAccessToken(tokenString string) *AccessClaims {
	claims := &AccessClaims{}
	if !c.verify(tokenString, claims) || claims.TokenType != typeAccess {
		return nil
	}
	return claims
}

// VerifyRefreshToken returns the claims of a valid refresh token, or nil on
// any failure.
func (c *Codec) VerifyRefreshToken(tokenString string) *RefreshClaims {
	claims := &RefreshClaims{}
	if !c.verify(tokenString, claims) || claims.TokenType != typeRefresh {
		return nil
	}
	return claims
}

func (c *Codec) verify(tokenString string, claims jwt.Claims) bool {
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return err == nil && tok.Valid
}

// NewMagicToken returns a fresh magic token value: a 6-digit numeric code,
// drawn uniformly from 000000-999999, joined to an 8-hex-char random suffix.
// The code alone is what users type; the suffix keeps the full value globally
// unique even when two codes collide.
func (c *Codec) NewMagicToken() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%06d-%s", n.Int64(), suffix), nil
}

// Expiry returns the timestamp d from now, in UTC.
func (c *Codec) Expiry(d time.Duration) time.Time {
	return c.now().UTC().Add(d)
}

// Expired reports whether t is strictly before now.
func (c *Codec) Expired(t time.Time) bool {
	return t.Before(c.now())
}

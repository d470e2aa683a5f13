package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/filamentory/filamentory/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	err := scanner.Scan(
		&sess.ID, &sess.UserID, &sess.RefreshToken,
		&sess.ExpiresAt, &sess.CreatedAt, &sess.LastUsed,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

const sessionCols = `id, user_id, refresh_token, expires_at, created_at, last_used`

// Create inserts a session row. The caller supplies the id because the
// refresh token embeds it, so it must exist before the token is signed.
func (s *SessionStore) Create(id, userID, refreshToken string, expiresAt time.Time) (*model.Session, error) {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, user_id, refresh_token, expires_at) VALUES (?, ?, ?, ?)`,
		id, userID, refreshToken, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetByRefreshToken returns the session backing the refresh token, or nil.
// Expiry is checked by the orchestrator, not filtered here.
func (s *SessionStore) GetByRefreshToken(refreshToken string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE refresh_token = ?`,
		refreshToken,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by refresh token: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) TouchLastUsed(id string) error {
	_, err := s.db.Exec(`UPDATE sessions SET last_used = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch session last used: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

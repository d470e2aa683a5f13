package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/filamentory/filamentory/internal/model"
	"github.com/google/uuid"
)

type MagicTokenStore struct {
	db *sql.DB
}

func NewMagicTokenStore(db *sql.DB) *MagicTokenStore {
	return &MagicTokenStore{db: db}
}

func scanMagicToken(scanner interface{ Scan(...any) error }) (*model.MagicToken, error) {
	var t model.MagicToken
	var used int

	err := scanner.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &used, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Used = used != 0
	return &t, nil
}

const magicTokenCols = `id, user_id, token, expires_at, used, created_at`

// Create stores a fresh token for the user. Token values are unique; the
// caller generates them with enough entropy that conflicts do not occur.
func (s *MagicTokenStore) Create(userID, token string, expiresAt time.Time) (*model.MagicToken, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO magic_tokens (id, user_id, token, expires_at) VALUES (?, ?, ?, ?)`,
		id, userID, token, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert magic token: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+magicTokenCols+` FROM magic_tokens WHERE id = ?`, id)
	return scanMagicToken(row)
}

// GetUnusedByToken returns the unused token with the exact value, or nil.
// Expiry is not filtered here: the orchestrator checks it separately so an
// expired token can be reported distinctly in internal logs.
func (s *MagicTokenStore) GetUnusedByToken(token string) (*model.MagicToken, error) {
	row := s.db.QueryRow(
		`SELECT `+magicTokenCols+` FROM magic_tokens WHERE token = ? AND used = 0`,
		token,
	)
	t, err := scanMagicToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get magic token: %w", err)
	}
	return t, nil
}

// GetUnusedByUserAndCode returns the newest unused token for the user whose
// 6-digit segment equals code, or nil. The code must already be validated as
// exactly six digits.
func (s *MagicTokenStore) GetUnusedByUserAndCode(userID, code string) (*model.MagicToken, error) {
	row := s.db.QueryRow(
		`SELECT `+magicTokenCols+` FROM magic_tokens
		 WHERE user_id = ? AND used = 0 AND token LIKE ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, code+"-%",
	)
	t, err := scanMagicToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get magic token by code: %w", err)
	}
	return t, nil
}

// MarkUsed consumes the token and returns the number of rows updated. The
// WHERE used = 0 guard makes consumption atomic: when two verification
// attempts race, exactly one sees 1 and the other sees 0.
func (s *MagicTokenStore) MarkUsed(id string) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE magic_tokens SET used = 1 WHERE id = ? AND used = 0`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("mark magic token used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// InvalidateAllForUser marks every unused token for the user as used, so only
// the token issued after this call can verify.
func (s *MagicTokenStore) InvalidateAllForUser(userID string) error {
	_, err := s.db.Exec(
		`UPDATE magic_tokens SET used = 1 WHERE user_id = ? AND used = 0`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("invalidate magic tokens: %w", err)
	}
	return nil
}

func (s *MagicTokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM magic_tokens WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired magic tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

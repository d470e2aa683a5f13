package store

import (
	"database/sql"
	"fmt"

	"github.com/filamentory/filamentory/internal/model"
	"github.com/google/uuid"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var verified int
	var lastLogin sql.NullTime

	err := scanner.Scan(&u.ID, &u.Email, &verified, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.EmailVerified = verified != 0
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

const userCols = `id, email, email_verified, last_login, created_at, updated_at`

// Create inserts a user with the given (already normalized) email.
func (s *UserStore) Create(email string) (*model.User, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO users (id, email) VALUES (?, ?)`,
		id, email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// TouchLastLogin stamps a successful verification: last_login is set to now
// and the email is marked verified (delivery of the magic token proved it).
func (s *UserStore) TouchLastLogin(id string) error {
	_, err := s.db.Exec(
		`UPDATE users SET last_login = datetime('now'), email_verified = 1, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

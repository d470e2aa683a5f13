package store

import (
	"database/sql"
	"fmt"

	"github.com/filamentory/filamentory/internal/model"
	"github.com/google/uuid"
)

type NoteStore struct {
	db *sql.DB
}

func NewNoteStore(db *sql.DB) *NoteStore {
	return &NoteStore{db: db}
}

func scanNote(scanner interface{ Scan(...any) error }) (*model.Note, error) {
	var n model.Note
	err := scanner.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Category, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

const noteCols = `id, user_id, title, content, category, created_at, updated_at`

func (s *NoteStore) Create(userID, title, content, category string) (*model.Note, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO notes (id, user_id, title, content, category) VALUES (?, ?, ?, ?, ?)`,
		id, userID, title, content, category,
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return s.GetByID(id, userID)
}

func (s *NoteStore) GetByID(id, userID string) (*model.Note, error) {
	row := s.db.QueryRow(`SELECT `+noteCols+` FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// List returns the user's notes, optionally filtered by category.
func (s *NoteStore) List(userID, category string) ([]model.Note, error) {
	query := `SELECT ` + noteCols + ` FROM notes WHERE user_id = ?`
	args := []any{userID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (s *NoteStore) Update(id, userID, title, content, category string) (*model.Note, error) {
	_, err := s.db.Exec(
		`UPDATE notes SET title = ?, content = ?, category = ?, updated_at = datetime('now') WHERE id = ? AND user_id = ?`,
		title, content, category, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return s.GetByID(id, userID)
}

func (s *NoteStore) Delete(id, userID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

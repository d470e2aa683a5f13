package store

import (
	"database/sql"
	"fmt"

	"github.com/filamentory/filamentory/internal/model"
	"github.com/google/uuid"
)

type FilamentStore struct {
	db *sql.DB
}

func NewFilamentStore(db *sql.DB) *FilamentStore {
	return &FilamentStore{db: db}
}

func scanFilament(scanner interface{ Scan(...any) error }) (*model.Filament, error) {
	var f model.Filament
	var modifier sql.NullString

	err := scanner.Scan(
		&f.ID, &f.UserID, &f.Brand, &f.FilamentType, &modifier,
		&f.Color, &f.Amount, &f.Cost, &f.Currency, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if modifier.Valid {
		f.TypeModifier = &modifier.String
	}
	return &f, nil
}

const filamentCols = `id, user_id, brand, filament_type, type_modifier, color, amount, cost, currency, created_at, updated_at`

func (s *FilamentStore) Create(userID, brand, filamentType string, typeModifier *string, color string, amount int64, cost float64, currency string) (*model.Filament, error) {
	id := uuid.NewString()
	var mod sql.NullString
	if typeModifier != nil {
		mod = sql.NullString{String: *typeModifier, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO filaments (id, user_id, brand, filament_type, type_modifier, color, amount, cost, currency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, brand, filamentType, mod, color, amount, cost, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("insert filament: %w", err)
	}
	return s.GetByID(id, userID)
}

// GetByID returns the filament, scoped to its owner.
func (s *FilamentStore) GetByID(id, userID string) (*model.Filament, error) {
	row := s.db.QueryRow(`SELECT `+filamentCols+` FROM filaments WHERE id = ? AND user_id = ?`, id, userID)
	f, err := scanFilament(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get filament: %w", err)
	}
	return f, nil
}

func (s *FilamentStore) List(userID string) ([]model.Filament, error) {
	rows, err := s.db.Query(
		`SELECT `+filamentCols+` FROM filaments WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list filaments: %w", err)
	}
	defer rows.Close()

	var filaments []model.Filament
	for rows.Next() {
		f, err := scanFilament(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filament: %w", err)
		}
		filaments = append(filaments, *f)
	}
	return filaments, rows.Err()
}

func (s *FilamentStore) Update(id, userID, brand, filamentType string, typeModifier *string, color string, amount int64, cost float64, currency string) (*model.Filament, error) {
	var mod sql.NullString
	if typeModifier != nil {
		mod = sql.NullString{String: *typeModifier, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE filaments SET brand = ?, filament_type = ?, type_modifier = ?, color = ?, amount = ?, cost = ?, currency = ?, updated_at = datetime('now')
		 WHERE id = ? AND user_id = ?`,
		brand, filamentType, mod, color, amount, cost, currency, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update filament: %w", err)
	}
	return s.GetByID(id, userID)
}

// ReduceAmount subtracts grams from a spool, clamping at zero.
func (s *FilamentStore) ReduceAmount(id, userID string, grams int64) (*model.Filament, error) {
	_, err := s.db.Exec(
		`UPDATE filaments SET amount = MAX(0, amount - ?), updated_at = datetime('now') WHERE id = ? AND user_id = ?`,
		grams, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("reduce filament amount: %w", err)
	}
	return s.GetByID(id, userID)
}

func (s *FilamentStore) Delete(id, userID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM filaments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete filament: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Stats aggregates count, spend per currency, and spool count per brand.
func (s *FilamentStore) Stats(userID string) (*model.FilamentStats, error) {
	stats := &model.FilamentStats{
		TotalValue: []model.CurrencyTotal{},
		Brands:     []model.BrandCount{},
	}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM filaments WHERE user_id = ?`, userID).Scan(&stats.TotalFilaments)
	if err != nil {
		return nil, fmt.Errorf("count filaments: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT currency, SUM(cost) FROM filaments WHERE user_id = ? GROUP BY currency`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("total value: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ct model.CurrencyTotal
		if err := rows.Scan(&ct.Currency, &ct.Total); err != nil {
			return nil, fmt.Errorf("scan currency total: %w", err)
		}
		stats.TotalValue = append(stats.TotalValue, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	brandRows, err := s.db.Query(
		`SELECT brand, COUNT(*) FROM filaments WHERE user_id = ? GROUP BY brand ORDER BY COUNT(*) DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("brand stats: %w", err)
	}
	defer brandRows.Close()
	for brandRows.Next() {
		var bc model.BrandCount
		if err := brandRows.Scan(&bc.Brand, &bc.Count); err != nil {
			return nil, fmt.Errorf("scan brand count: %w", err)
		}
		stats.Brands = append(stats.Brands, bc)
	}
	return stats, brandRows.Err()
}

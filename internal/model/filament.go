package model

import "time"

// ValidCurrencies are the currencies the inventory accepts for spool cost.
var ValidCurrencies = map[string]bool{
	"SEK": true,
	"EUR": true,
	"USD": true,
}

type Filament struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Brand        string    `json:"brand"`
	FilamentType string    `json:"filamentType"`
	TypeModifier *string   `json:"typeModifier"`
	Color        string    `json:"color"`
	Amount       int64     `json:"amount"` // grams remaining
	Cost         float64   `json:"cost"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CurrencyTotal is the total spend in one currency across a user's spools.
type CurrencyTotal struct {
	Currency string  `json:"currency"`
	Total    float64 `json:"total"`
}

// BrandCount is the number of spools per brand.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int64  `json:"count"`
}

// FilamentStats aggregates a user's inventory for the stats endpoint.
type FilamentStats struct {
	TotalFilaments int64           `json:"totalFilaments"`
	TotalValue     []CurrencyTotal `json:"totalValue"`
	Brands         []BrandCount    `json:"brands"`
}

package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSymbolNotFound reports a symbol absent from the active price source.
var ErrSymbolNotFound = errors.New("symbol not found")

// SymbolInfo describes one entry in the price-history catalog
type SymbolInfo struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Bars        int       `json:"bars" db:"bars"`
	FirstDate   time.Time `json:"first_date" db:"first_date"`
	LastDate    time.Time `json:"last_date" db:"last_date"`
}

// String returns the ticker symbol
func (si *SymbolInfo) String() string {
	return si.Symbol
}

// Slug returns the lowercase identifier used in cache keys and file names
func (si *SymbolInfo) Slug() string {
	return strings.ToLower(si.Symbol)
}

// SymbolsResponse lists the catalog for API responses
type SymbolsResponse struct {
	Symbols   []SymbolInfo `json:"symbols"`
	Count     int          `json:"count"`
	Timestamp time.Time    `json:"timestamp"`
}

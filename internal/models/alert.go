package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Extremum kinds carried by CycleAlert
const (
	AlertKindPeak   = "peak"
	AlertKindTrough = "trough"
)

// CycleAlert records a newly confirmed cycle extremum pushed to subscribers
type CycleAlert struct {
	ID         uuid.UUID       `json:"id"`
	Symbol     string          `json:"symbol"`
	Wavelength int             `json:"wavelength"`
	Kind       string          `json:"kind"`
	BarIndex   int             `json:"bar_index"`
	BarDate    time.Time       `json:"bar_date"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Message formats the alert for Telegram delivery
func (a *CycleAlert) Message() string {
	verb := "bottomed"
	if a.Kind == AlertKindPeak {
		verb = "peaked"
	}
	return fmt.Sprintf("%s: %d-day cycle %s at %s on %s",
		a.Symbol, a.Wavelength, verb, a.Price.StringFixed(2), a.BarDate.Format("2006-01-02"))
}

// AdminTokenRequest exchanges the admin API key for a session token
type AdminTokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// AdminTokenResponse carries the signed session token
type AdminTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

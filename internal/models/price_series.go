package models

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar represents one daily close as stored in the price_bars table
type PriceBar struct {
	Symbol     string          `json:"symbol" db:"symbol"`
	BarDate    time.Time       `json:"bar_date" db:"bar_date"`
	ClosePrice decimal.Decimal `json:"close_price" db:"close_price"`
}

// TableName returns the table name for PriceBar
func (PriceBar) TableName() string {
	return "price_bars"
}

// PriceSeries is the float64 view of a symbol's price history consumed by
// the analysis engine. Bars are chronological, oldest first.
type PriceSeries struct {
	Symbol string      `json:"symbol"`
	Dates  []time.Time `json:"dates"`
	Closes []float64   `json:"closes"`
}

// NewPriceSeries converts repository bars into an engine-ready series.
// Decimal prices narrow to float64 here, once, at the model boundary.
func NewPriceSeries(symbol string, bars []PriceBar) *PriceSeries {
	series := &PriceSeries{
		Symbol: symbol,
		Dates:  make([]time.Time, 0, len(bars)),
		Closes: make([]float64, 0, len(bars)),
	}
	for _, bar := range bars {
		series.Dates = append(series.Dates, bar.BarDate)
		series.Closes = append(series.Closes, bar.ClosePrice.InexactFloat64())
	}
	return series
}

// Len returns the number of bars in the series
func (s *PriceSeries) Len() int {
	return len(s.Closes)
}

// Tail returns a view of the most recent n bars. The full series is
// returned when it holds fewer than n bars.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n <= 0 || n >= len(s.Closes) {
		return s
	}
	start := len(s.Closes) - n
	tail := &PriceSeries{Symbol: s.Symbol, Closes: s.Closes[start:]}
	if len(s.Dates) == len(s.Closes) {
		tail.Dates = s.Dates[start:]
	}
	return tail
}

// LastDate returns the date of the most recent bar, or the zero time when
// the series carries no dates.
func (s *PriceSeries) LastDate() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Validate checks the invariants the engine relies on: matching date and
// close lengths, at least one bar, finite positive closes.
func (s *PriceSeries) Validate() error {
	if len(s.Closes) == 0 {
		return fmt.Errorf("price series for %s is empty", s.Symbol)
	}
	if len(s.Dates) != 0 && len(s.Dates) != len(s.Closes) {
		return fmt.Errorf("price series for %s has %d dates but %d closes", s.Symbol, len(s.Dates), len(s.Closes))
	}
	for i, close := range s.Closes {
		if math.IsNaN(close) || math.IsInf(close, 0) {
			return fmt.Errorf("price series for %s has a non-finite close at bar %d", s.Symbol, i)
		}
		if close <= 0 {
			return fmt.Errorf("price series for %s has a non-positive close at bar %d", s.Symbol, i)
		}
	}
	return nil
}

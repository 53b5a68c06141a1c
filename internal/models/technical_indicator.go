package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorData represents structured indicator calculation results
type IndicatorData struct {
	Symbol     string                 `json:"symbol"`
	Indicators map[string]interface{} `json:"indicators"`
	Timestamp  time.Time              `json:"timestamp"`
}

// RSIData represents RSI indicator values
type RSIData struct {
	Period    int             `json:"period"`
	Value     decimal.Decimal `json:"value"`
	Signal    string          `json:"signal"` // "oversold", "overbought", "neutral"
	Timestamp time.Time       `json:"timestamp"`
}

// MACDData represents MACD indicator values
type MACDData struct {
	MACD      decimal.Decimal `json:"macd"`
	Signal    decimal.Decimal `json:"signal"`
	Histogram decimal.Decimal `json:"histogram"`
	Trend     string          `json:"trend"` // "bullish", "bearish", "neutral"
	Timestamp time.Time       `json:"timestamp"`
}

// MovingAverageData represents SMA or EMA values
type MovingAverageData struct {
	Kind      string          `json:"kind"` // "sma" or "ema"
	Period    int             `json:"period"`
	Value     decimal.Decimal `json:"value"`
	Trend     string          `json:"trend"` // "up", "down", "sideways"
	Timestamp time.Time       `json:"timestamp"`
}

// BollingerData represents Bollinger band values
type BollingerData struct {
	Upper     decimal.Decimal `json:"upper"`
	Middle    decimal.Decimal `json:"middle"`
	Lower     decimal.Decimal `json:"lower"`
	Position  string          `json:"position"` // "above", "inside", "below"
	Timestamp time.Time       `json:"timestamp"`
}

// Signal represents a trading signal generated from technical analysis
type Signal struct {
	Type       string          `json:"type"`     // "buy", "sell", "hold"
	Strength   string          `json:"strength"` // "strong", "weak", "neutral"
	Price      decimal.Decimal `json:"price"`
	Indicator  string          `json:"indicator"`  // Source indicator
	Confidence decimal.Decimal `json:"confidence"` // 0-100
	Timestamp  time.Time       `json:"timestamp"`
}

// TechnicalAnalysisRequest represents query parameters for the indicator
// endpoint
type TechnicalAnalysisRequest struct {
	Symbol     string   `form:"symbol" binding:"required"`
	Indicators []string `form:"indicators"`
	Period     int      `form:"period"`
}

// TechnicalAnalysisResponse represents technical analysis results
type TechnicalAnalysisResponse struct {
	Data      IndicatorData `json:"data"`
	Signals   []Signal      `json:"signals"`
	Timestamp time.Time     `json:"timestamp"`
}

package models

import (
	"time"
)

// AnalysisRun records one engine invocation for logging and cache metadata
type AnalysisRun struct {
	RunID      string    `json:"run_id"`
	Symbol     string    `json:"symbol"`
	WindowSize int       `json:"window_size"`
	StartedAt  time.Time `json:"started_at"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	CacheHit   bool      `json:"cache_hit"`
}

// CycleAnalysisRequest represents query parameters for the analyze endpoint
type CycleAnalysisRequest struct {
	Symbol     string `form:"symbol" binding:"required"`
	WindowSize int    `form:"window_size"`
}

// BandpassRequest represents query parameters for a single-cycle
// reconstruction
type BandpassRequest struct {
	Symbol             string `form:"symbol" binding:"required"`
	SelectedWavelength int    `form:"selected_wavelength" binding:"required"`
	WindowSize         int    `form:"window_size"`
	Method             string `form:"method"`
	AlignTo            string `form:"align_to"`
	ExtendFuture       int    `form:"extend_future"`
}

// EvaluateRequest represents query parameters for the cycle evaluation
// endpoint. Wavelength zero evaluates the dominant detected cycle.
type EvaluateRequest struct {
	Symbol     string `form:"symbol" binding:"required"`
	Wavelength int    `form:"wavelength"`
}

// PriceData is the chart-aligned price payload. Dates run past the last
// real bar when a forward projection was requested; Prices carries null
// for those future slots so chart libraries break the line there.
type PriceData struct {
	Dates  []string   `json:"dates"`
	Prices []*float64 `json:"prices"`
}

// BandpassPayload is the display form of a reconstructed cycle: the signal
// rescaled into a fixed band around zero, with extrema indices into the
// scaled slice.
type BandpassPayload struct {
	ScaledValues     []float64 `json:"scaled_values"`
	Peaks            []int     `json:"peaks"`
	Troughs          []int     `json:"troughs"`
	Wavelength       int       `json:"wavelength"`
	Amplitude        float64   `json:"amplitude"`
	PhaseDegrees     float64   `json:"phase_degrees"`
	Method           string    `json:"method"`
	FutureDays       int       `json:"future_days"`
	HistoricalLength int       `json:"historical_length"`
}

// PeakCycle is one detected spectral peak. CalendarDays is the display
// conversion of the trading-bar wavelength and is never fed back into
// computation.
type PeakCycle struct {
	WavelengthDays int     `json:"wavelength_days"`
	CalendarDays   int     `json:"calendar_days"`
	Power          float64 `json:"power"`
}

// HeatmapPayload carries the normalized time-by-wavelength power grid,
// oldest row first
type HeatmapPayload struct {
	Data        [][]float64 `json:"data"`
	Wavelengths []int       `json:"wavelengths"`
}

// SpectrumPayload carries the current-bar power spectrum
type SpectrumPayload struct {
	Wavelengths []int     `json:"wavelengths"`
	Amplitudes  []float64 `json:"amplitudes"`
}

// CycleAnalysisResponse represents the full analysis payload
type CycleAnalysisResponse struct {
	RunID         string           `json:"run_id"`
	Symbol        string           `json:"symbol"`
	PriceData     PriceData        `json:"price_data"`
	Bandpass      *BandpassPayload `json:"bandpass,omitempty"`
	PeakCycles    []PeakCycle      `json:"peak_cycles"`
	Heatmap       HeatmapPayload   `json:"heatmap"`
	PowerSpectrum SpectrumPayload  `json:"power_spectrum"`
	Timestamp     time.Time        `json:"timestamp"`
}

// BandpassResponse represents a single-cycle reconstruction payload
type BandpassResponse struct {
	RunID     string          `json:"run_id"`
	Symbol    string          `json:"symbol"`
	PriceData PriceData       `json:"price_data"`
	Bandpass  BandpassPayload `json:"bandpass"`
	Timestamp time.Time       `json:"timestamp"`
}

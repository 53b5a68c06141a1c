// Package cycles implements the spectral analysis engine: Morlet wavelet
// power estimation over rolling windows, a time-by-wavelength heatmap with
// global normalization, phase-aligned sine bandpass reconstruction with
// forward projection, and the derived yield, health and significance metrics.
//
// All functions in this package are pure: they never mutate their inputs and
// every call produces a fresh result value. Wavelengths are expressed in
// trading bars throughout; conversion to calendar days is a display concern
// that lives outside the engine.
package cycles

// TradingToCalendarRatio converts trading-bar wavelengths to calendar days
// for display. It is never used in computation.
const TradingToCalendarRatio = 365.0 / 252.0

// Reconstruction methods reported in BandpassResult.Method.
const (
	MethodWaveletPhase     = "wavelet_phase"
	MethodActualPricePeaks = "actual_price_peaks"
)

// Phase anchor preferences for the actual-price-peaks method.
const (
	AlignTrough = "trough"
	AlignPeak   = "peak"
	AlignAuto   = "auto"
)

// PowerSpectrum holds power per candidate wavelength for one historical
// end-point. Raw values are only comparable after normalization.
type PowerSpectrum struct {
	Wavelengths []int     `json:"wavelengths"`
	Power       []float64 `json:"power"`
}

// DetectedCycle is one dominant wavelength extracted from the current
// spectrum row by peak picking.
type DetectedCycle struct {
	Wavelength int     `json:"wavelength_days"`
	Power      float64 `json:"power"`
}

// Heatmap is the rolling time-by-wavelength power surface. Rows are ordered
// oldest first; the final row is the current spectrum. Every cell is divided
// by the single global maximum, so values are in [0, 1] and comparable
// across the whole history.
type Heatmap struct {
	Rows            [][]float64     `json:"data"`
	Wavelengths     []int           `json:"wavelengths"`
	CurrentSpectrum []float64       `json:"current_spectrum"`
	GlobalMax       float64         `json:"global_max"`
	Cycles          []DetectedCycle `json:"cycles"`
}

// BandpassOptions configure one reconstruction request.
type BandpassOptions struct {
	Wavelength   int     `json:"wavelength"`
	BandwidthPct float64 `json:"bandwidth_pct"`
	ExtendFuture int     `json:"extend_future"`
	Method       string  `json:"method"`
	AlignTo      string  `json:"align_to"`
}

// BandpassResult is the phase-aligned sine reconstruction of one cycle.
// Signal spans the historical window plus ExtendFuture projected bars and is
// normalized to unit amplitude. Peaks and Troughs list confirmed historical
// extrema only; still-developing and projected indices are excluded.
type BandpassResult struct {
	Signal           []float64 `json:"signal"`
	Wavelength       int       `json:"wavelength"`
	Amplitude        float64   `json:"amplitude"`
	Phase            float64   `json:"phase_radians"`
	PhaseDegrees     float64   `json:"phase_degrees"`
	Method           string    `json:"method"`
	Peaks            []int     `json:"peaks"`
	Troughs          []int     `json:"troughs"`
	HistoricalLength int       `json:"historical_length"`
	ExtendFuture     int       `json:"future_days"`
}

// Extremum is a located turning point. Confirmed means the index lies
// outside the trailing exclusion zone and may be used as a phase anchor.
type Extremum struct {
	Index      int     `json:"index"`
	Value      float64 `json:"value"`
	Prominence float64 `json:"prominence"`
	Confirmed  bool    `json:"confirmed"`
}

// TradeRecord is one closed buy-trough/sell-peak round trip.
type TradeRecord struct {
	EntryIndex int     `json:"entry_idx"`
	ExitIndex  int     `json:"exit_idx"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	ReturnPct  float64 `json:"return_pct"`
}

// YieldResult reports the idealized trading performance of a cycle.
type YieldResult struct {
	YieldPercent float64       `json:"yield_percent"`
	NumTrades    int           `json:"num_trades"`
	Trades       []TradeRecord `json:"trades"`
	Rating       string        `json:"rating"`
	Description  string        `json:"description"`
}

// RunningYieldPoint samples cumulative yield at one end index.
type RunningYieldPoint struct {
	EndIndex     int     `json:"end_idx"`
	YieldPercent float64 `json:"yield_percent"`
}

// HealthResult scores amplitude and period stability of a cycle over time.
type HealthResult struct {
	Score              int           `json:"score"`
	Status             string        `json:"status"`
	AmplitudeStatus    string        `json:"amplitude_health"`
	PeriodStatus       string        `json:"wavelength_health"`
	AmplitudeTrendPct  float64       `json:"amplitude_trend"`
	WavelengthDriftPct float64       `json:"wavelength_drift"`
	Details            HealthDetails `json:"details"`
}

// HealthDetails carries the raw measurements behind a HealthResult.
type HealthDetails struct {
	RecentAmplitude       float64 `json:"recent_amplitude"`
	HistoricalAmplitude   float64 `json:"historical_amplitude"`
	RecentWavelength      float64 `json:"recent_wavelength"`
	ExpectedWavelength    float64 `json:"expected_wavelength"`
	WavelengthVariancePct float64 `json:"wavelength_variance"`
}

// BartelsResult reports the Bartels-style significance test for one cycle.
type BartelsResult struct {
	Score                float64 `json:"score"`
	Grade                string  `json:"grade"`
	AutocorrScore        float64 `json:"autocorr_score"`
	PhaseStability       float64 `json:"phase_stability"`
	AmplitudeConsistency float64 `json:"amplitude_consistency"`
	Genuine              bool    `json:"genuine"`
}

// QualityResult is the SNR plus harmonic-family star rating of a cycle.
// Family is the sorted harmonic family containing the cycle, itself
// included; a single-member family marks an orphan.
type QualityResult struct {
	Score            int     `json:"score"`
	Stars            int     `json:"stars"`
	Label            string  `json:"label"`
	SNR              float64 `json:"snr_linear"`
	SNRDb            float64 `json:"snr_db"`
	SNRQuality       string  `json:"snr_quality"`
	SNRScore         int     `json:"snr_score"`
	HarmonicScore    int     `json:"harmonic_score"`
	HarmonicPartners int     `json:"harmonic_partners"`
	Family           []int   `json:"family"`
}

// RatingResult classifies a cycle by stationarity, isolation and gain.
type RatingResult struct {
	Class                 string  `json:"class"`
	Score                 float64 `json:"score"`
	AmplitudeStationarity float64 `json:"amp_stationarity"`
	FrequencyStationarity float64 `json:"freq_stationarity"`
	SpectralIsolation     float64 `json:"spectral_isolation"`
	SNR                   float64 `json:"snr"`
	GainRank              int     `json:"gain_rank"`
}

// TroughAlignment is one group of cycle troughs that bottomed within the
// alignment tolerance of each other.
type TroughAlignment struct {
	Index       int    `json:"alignment_idx"`
	NumCycles   int    `json:"num_cycles"`
	Wavelengths []int  `json:"wavelengths"`
	Confidence  string `json:"confidence"`
	DaysAgo     int    `json:"days_ago"`
}

// CyclePhaseState describes where one reconstructed cycle sits in its swing.
// Index fields are -1 when the signal holds no extremum of that kind, and
// DaysSinceTrough is -1 when no trough was found.
type CyclePhaseState struct {
	Wavelength      int  `json:"wavelength"`
	Rising          bool `json:"is_rising"`
	LastTroughIndex int  `json:"last_trough_idx"`
	LastPeakIndex   int  `json:"last_peak_idx"`
	DaysSinceTrough int  `json:"days_since_trough"`
}

// SynchronizationResult reports trough alignments across several cycles, the
// composite entry signal derived from them, and an overall status summary.
type SynchronizationResult struct {
	Status       string            `json:"sync_status"`
	Confidence   string            `json:"confidence"`
	RisingCycles int               `json:"rising_cycles"`
	TotalCycles  int               `json:"total_cycles"`
	RisingPct    float64           `json:"rising_percentage"`
	Alignments   []TroughAlignment `json:"alignments"`
	Phases       []CyclePhaseState `json:"phases"`
	Tolerance    int               `json:"tolerance"`
	Entry        *EntrySignal      `json:"entry"`
}

// EntrySignal is the composite buy check: the trade cycle and at least two
// longer cycles must all be rising.
type EntrySignal struct {
	Buy                  bool   `json:"buy_signal"`
	TradeCycleWavelength int    `json:"trade_cycle_wavelength"`
	TradeCycleRising     bool   `json:"trade_cycle_rising"`
	LongerCyclesRising   int    `json:"longer_cycles_rising"`
	TotalCyclesRising    int    `json:"total_cycles_rising"`
	Confidence           string `json:"confidence"`
	RisingWavelengths    []int  `json:"rising_wavelengths"`
	Reason               string `json:"reason"`
}

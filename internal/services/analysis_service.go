package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cyclescope-go/internal/cache"
	"github.com/irfndi/cyclescope-go/internal/config"
	"github.com/irfndi/cyclescope-go/internal/cycles"
	"github.com/irfndi/cyclescope-go/internal/models"
	"github.com/irfndi/cyclescope-go/internal/telemetry"
)

// displayHalfRange is the half-height of the fixed band the dashboard plots
// reconstructed cycles in. Signals are unit-amplitude, so scaling is a
// single multiply.
const displayHalfRange = 25.0

// maxSyncCycles caps how many detected cycles feed the synchronization
// check during evaluation.
const maxSyncCycles = 5

// PriceSource is where price history comes from. The CSV provider and the
// database-backed repository both satisfy it.
type PriceSource interface {
	GetPriceSeries(ctx context.Context, symbol string, limit int) (*models.PriceSeries, error)
	ListSymbols(ctx context.Context) ([]models.SymbolInfo, error)
}

// BandpassParams carries the optional knobs of a reconstruction request.
// Zero values fall back to the engine configuration.
type BandpassParams struct {
	WindowSize   int
	Method       string
	AlignTo      string
	ExtendFuture int
}

// CycleEvaluation bundles every scorer's verdict on one cycle of a symbol.
type CycleEvaluation struct {
	RunID           string                        `json:"run_id"`
	Symbol          string                        `json:"symbol"`
	Wavelength      int                           `json:"wavelength"`
	WindowSize      int                           `json:"window_size"`
	Yield           *cycles.YieldResult           `json:"yield"`
	RunningYield    []cycles.RunningYieldPoint    `json:"running_yield"`
	Health          *cycles.HealthResult          `json:"health"`
	Bartels         *cycles.BartelsResult         `json:"bartels"`
	Quality         *cycles.QualityResult         `json:"quality"`
	Rating          *cycles.RatingResult          `json:"rating"`
	Synchronization *cycles.SynchronizationResult `json:"synchronization"`
	Timestamp       time.Time                     `json:"timestamp"`
}

// AnalysisService orchestrates price source, spectral engine and cache.
type AnalysisService struct {
	source    PriceSource
	cache     *cache.RedisAnalysisCache
	engineCfg config.EngineConfig
	optimizer *ResourceOptimizer
	logger    *logrus.Logger
	tracer    *telemetry.EngineTracer
}

// NewAnalysisService creates the analysis orchestrator. Cache and optimizer
// are optional; a nil cache disables result caching and a nil optimizer
// leaves worker sizing to the engine.
func NewAnalysisService(source PriceSource, analysisCache *cache.RedisAnalysisCache, engineCfg config.EngineConfig, optimizer *ResourceOptimizer, logger *logrus.Logger) *AnalysisService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AnalysisService{
		source:    source,
		cache:     analysisCache,
		engineCfg: engineCfg,
		optimizer: optimizer,
		logger:    logger,
		tracer:    telemetry.NewEngineTracer(),
	}
}

// AnalyzeSymbol runs the full spectral analysis for a symbol: rolling
// heatmap, current spectrum, detected cycles and a reconstruction of the
// dominant cycle. Cached results short-circuit the computation.
func (s *AnalysisService) AnalyzeSymbol(ctx context.Context, symbol string, windowSize int) (*models.CycleAnalysisResponse, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if windowSize <= 0 {
		windowSize = s.engineCfg.WindowSize
	}
	if windowSize <= 0 {
		windowSize = cycles.DefaultWindowSize
	}

	if raw, ok := s.cacheGet(ctx, cache.KindAnalysis, symbol, windowSize); ok {
		var cached models.CycleAnalysisResponse
		if err := json.Unmarshal(raw, &cached); err == nil {
			s.logger.WithFields(logrus.Fields{
				"run_id": cached.RunID,
				"symbol": symbol,
				"window": windowSize,
			}).Debug("Analysis served from cache")
			return &cached, nil
		}
	}

	runID := uuid.New().String()
	start := time.Now()

	series, err := s.source.GetPriceSeries(ctx, symbol, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for %s: %w", symbol, err)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if windowSize > series.Len() {
		windowSize = series.Len()
	}

	grid := s.analysisGrid()
	ctx, span := s.tracer.TraceHeatmapBuild(ctx, symbol, windowSize, len(grid))
	defer span.End()

	heatmap, err := cycles.BuildHeatmap(ctx, series.Closes, cycles.HeatmapOptions{
		Grid:            grid,
		WindowSize:      windowSize,
		Workers:         s.workers(),
		MinPeakHeight:   s.engineCfg.MinPeakHeight,
		MinPeakDistance: s.engineCfg.MinPeakDistance,
	})
	if err != nil {
		return nil, err
	}
	s.tracer.RecordHeatmapMetrics(span, telemetry.HeatmapMetrics{
		Weeks:          len(heatmap.Rows),
		Wavelengths:    len(heatmap.Wavelengths),
		GlobalMax:      heatmap.GlobalMax,
		DetectedCycles: len(heatmap.Cycles),
		BuildTime:      time.Since(start),
	})

	window := series.Tail(windowSize)

	var bandpass *models.BandpassPayload
	futureDays := 0
	if len(heatmap.Cycles) > 0 {
		result, err := cycles.Reconstruct(window.Closes, cycles.BandpassOptions{
			Wavelength:   heatmap.Cycles[0].Wavelength,
			BandwidthPct: s.engineCfg.BandwidthPct,
			ExtendFuture: s.engineCfg.ExtendFuture,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct dominant cycle for %s: %w", symbol, err)
		}
		payload := toBandpassPayload(result)
		bandpass = &payload
		futureDays = result.ExtendFuture
	}

	resp := &models.CycleAnalysisResponse{
		RunID:      runID,
		Symbol:     symbol,
		PriceData:  buildPriceData(window, futureDays),
		Bandpass:   bandpass,
		PeakCycles: toPeakCycles(heatmap.Cycles),
		Heatmap: models.HeatmapPayload{
			Data:        heatmap.Rows,
			Wavelengths: heatmap.Wavelengths,
		},
		PowerSpectrum: models.SpectrumPayload{
			Wavelengths: heatmap.Wavelengths,
			Amplitudes:  heatmap.CurrentSpectrum,
		},
		Timestamp: time.Now().UTC(),
	}
	s.cacheSet(ctx, cache.KindAnalysis, symbol, windowSize, resp)

	s.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"symbol":     symbol,
		"window":     windowSize,
		"weeks":      len(heatmap.Rows),
		"cycles":     len(heatmap.Cycles),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("Cycle analysis completed")
	return resp, nil
}

// ReconstructBandpass rebuilds one cycle at the requested wavelength.
// Reconstructions are cheap and parameter-rich, so they bypass the cache.
func (s *AnalysisService) ReconstructBandpass(ctx context.Context, symbol string, wavelength int, params BandpassParams) (*models.BandpassResponse, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if wavelength <= 0 {
		return nil, fmt.Errorf("wavelength must be positive, got %d", wavelength)
	}
	windowSize := params.WindowSize
	if windowSize <= 0 {
		windowSize = s.engineCfg.WindowSize
	}
	if windowSize <= 0 {
		windowSize = cycles.DefaultWindowSize
	}
	extendFuture := params.ExtendFuture
	if extendFuture <= 0 {
		extendFuture = s.engineCfg.ExtendFuture
	}

	runID := uuid.New().String()
	start := time.Now()

	series, err := s.source.GetPriceSeries(ctx, symbol, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for %s: %w", symbol, err)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if windowSize > series.Len() {
		windowSize = series.Len()
	}
	window := series.Tail(windowSize)

	_, span := s.tracer.TraceReconstruction(ctx, symbol, wavelength, params.Method)
	defer span.End()

	result, err := cycles.Reconstruct(window.Closes, cycles.BandpassOptions{
		Wavelength:   wavelength,
		BandwidthPct: s.engineCfg.BandwidthPct,
		ExtendFuture: extendFuture,
		Method:       params.Method,
		AlignTo:      params.AlignTo,
	})
	if err != nil {
		return nil, err
	}
	s.tracer.RecordReconstruction(span, telemetry.ReconstructionMetrics{
		Wavelength:   result.Wavelength,
		Method:       result.Method,
		Amplitude:    result.Amplitude,
		PhaseDegrees: result.PhaseDegrees,
		FutureDays:   result.ExtendFuture,
		Peaks:        len(result.Peaks),
		Troughs:      len(result.Troughs),
	})

	resp := &models.BandpassResponse{
		RunID:     runID,
		Symbol:    symbol,
		PriceData: buildPriceData(window, result.ExtendFuture),
		Bandpass:  toBandpassPayload(result),
		Timestamp: time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"symbol":     symbol,
		"wavelength": wavelength,
		"method":     result.Method,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("Bandpass reconstruction completed")
	return resp, nil
}

// EvaluateCycle scores one cycle of a symbol with every scorer the engine
// carries: trough-buy/peak-sell yield, amplitude and period health, Bartels
// significance, quality stars, rating class and multi-cycle
// synchronization. Wavelength zero evaluates the dominant detected cycle.
func (s *AnalysisService) EvaluateCycle(ctx context.Context, symbol string, wavelength int) (*CycleEvaluation, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if wavelength < 0 {
		return nil, fmt.Errorf("wavelength must not be negative, got %d", wavelength)
	}

	if raw, ok := s.cacheGet(ctx, cache.KindEvaluate, symbol, wavelength); ok {
		var cached CycleEvaluation
		if err := json.Unmarshal(raw, &cached); err == nil {
			s.logger.WithFields(logrus.Fields{
				"run_id":     cached.RunID,
				"symbol":     symbol,
				"wavelength": wavelength,
			}).Debug("Evaluation served from cache")
			return &cached, nil
		}
	}

	runID := uuid.New().String()
	start := time.Now()

	windowSize := s.engineCfg.WindowSize
	if windowSize <= 0 {
		windowSize = cycles.DefaultWindowSize
	}
	series, err := s.source.GetPriceSeries(ctx, symbol, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for %s: %w", symbol, err)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if windowSize > series.Len() {
		windowSize = series.Len()
	}
	window := series.Tail(windowSize)

	spectrum, err := cycles.CurrentPowerSpectrum(window.Closes, cycles.HeatmapOptions{
		Grid:       s.analysisGrid(),
		WindowSize: windowSize,
	})
	if err != nil {
		return nil, err
	}
	detected := cycles.DetectCycles(spectrum, s.engineCfg.MinPeakHeight, s.engineCfg.MinPeakDistance)
	if wavelength == 0 {
		if len(detected) == 0 {
			return nil, fmt.Errorf("no cycles detected for %s", symbol)
		}
		wavelength = detected[0].Wavelength
	}

	ctx, span := s.tracer.TraceEvaluation(ctx, symbol, wavelength)
	defer span.End()

	// Evaluation works on the historical signal only; no forward extension.
	result, err := cycles.Reconstruct(window.Closes, cycles.BandpassOptions{
		Wavelength:   wavelength,
		BandwidthPct: s.engineCfg.BandwidthPct,
	})
	if err != nil {
		return nil, err
	}

	// Trade timing comes off the phase-aligned reconstruction; the
	// stability scorers need the raw band-limited signal, which still
	// carries the measured amplitude and period variation the synthesized
	// sine smooths away.
	filtered, err := cycles.FilteredSignal(window.Closes, wavelength, s.engineCfg.BandwidthPct)
	if err != nil {
		return nil, err
	}

	quality, err := cycles.ComputeQuality(window.Closes, wavelength, detected, s.engineCfg.BandwidthPct)
	if err != nil {
		return nil, err
	}

	eval := &CycleEvaluation{
		RunID:           runID,
		Symbol:          symbol,
		Wavelength:      wavelength,
		WindowSize:      windowSize,
		Yield:           cycles.ComputeYield(result.Signal, window.Closes, wavelength),
		RunningYield:    cycles.RunningYield(result.Signal, window.Closes, wavelength, cycles.DefaultRunningYieldStep),
		Health:          cycles.ComputeHealth(filtered, wavelength, cycles.DefaultLookbackCycles),
		Bartels:         cycles.ComputeBartels(filtered, wavelength),
		Quality:         quality,
		Rating:          cycles.ComputeRating(filtered, wavelength, spectrum),
		Synchronization: s.synchronize(window.Closes, wavelength, detected),
		Timestamp:       time.Now().UTC(),
	}

	s.tracer.RecordEvaluation(span, telemetry.EvaluationMetrics{
		YieldPercent: eval.Yield.YieldPercent,
		NumTrades:    eval.Yield.NumTrades,
		HealthScore:  float64(eval.Health.Score),
		BartelsScore: eval.Bartels.Score,
		QualityStars: eval.Quality.Stars,
		RatingClass:  eval.Rating.Class,
	})
	s.cacheSet(ctx, cache.KindEvaluate, symbol, wavelength, eval)

	s.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"symbol":     symbol,
		"wavelength": wavelength,
		"yield_pct":  eval.Yield.YieldPercent,
		"health":     eval.Health.Score,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("Cycle evaluation completed")
	return eval, nil
}

// ListSymbols exposes the source catalog through the service.
func (s *AnalysisService) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	return s.source.ListSymbols(ctx)
}

// ClearCache drops every cached analysis entry. No-op without a cache.
func (s *AnalysisService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// synchronize reconstructs the strongest detected cycles and checks how
// they line up. The evaluated wavelength is always part of the set.
func (s *AnalysisService) synchronize(prices []float64, wavelength int, detected []cycles.DetectedCycle) *cycles.SynchronizationResult {
	wavelengths := make([]int, 0, maxSyncCycles)
	wavelengths = append(wavelengths, wavelength)
	for _, c := range detected {
		if len(wavelengths) >= maxSyncCycles {
			break
		}
		if c.Wavelength != wavelength {
			wavelengths = append(wavelengths, c.Wavelength)
		}
	}

	signals := make(map[int]*cycles.BandpassResult, len(wavelengths))
	for _, w := range wavelengths {
		res, err := cycles.Reconstruct(prices, cycles.BandpassOptions{
			Wavelength:   w,
			BandwidthPct: s.engineCfg.BandwidthPct,
		})
		if err != nil {
			s.logger.WithError(err).WithField("wavelength", w).Warn("Skipping cycle in synchronization check")
			continue
		}
		signals[w] = res
	}
	return cycles.ComputeSynchronization(signals, cycles.DefaultAlignmentTolerance)
}

// analysisGrid builds the wavelength grid from configuration, falling back
// to the engine defaults when no range is configured.
func (s *AnalysisService) analysisGrid() []int {
	return gridFromConfig(s.engineCfg)
}

// gridFromConfig is shared by the analysis and alert paths so both scan the
// same wavelength range.
func gridFromConfig(cfg config.EngineConfig) []int {
	min, max := cfg.MinWavelength, cfg.MaxWavelength
	if min > 0 && max > min {
		step := 1
		if cfg.CoarseGrid {
			step = 5
		}
		grid := make([]int, 0, (max-min)/step+1)
		for w := min; w <= max; w += step {
			grid = append(grid, w)
		}
		return grid
	}
	if cfg.CoarseGrid {
		return cycles.CoarseGrid()
	}
	return cycles.DefaultGrid()
}

// workers resolves the heatmap worker count, bounded by the resource
// optimizer when one is attached. Zero lets the engine size the pool.
func (s *AnalysisService) workers() int {
	w := s.engineCfg.Workers
	if s.optimizer != nil {
		limit := s.optimizer.GetOptimalConcurrency().MaxWorkers
		if limit > 0 && (w <= 0 || w > limit) {
			w = limit
		}
	}
	if w < 0 {
		w = 0
	}
	return w
}

func (s *AnalysisService) cacheGet(ctx context.Context, kind, symbol string, n int) (json.RawMessage, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, kind, symbol, n)
}

func (s *AnalysisService) cacheSet(ctx context.Context, kind, symbol string, n int, payload interface{}) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, kind, symbol, n, payload)
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	return symbol, nil
}

// toBandpassPayload rescales a unit-amplitude reconstruction into the fixed
// display band.
func toBandpassPayload(result *cycles.BandpassResult) models.BandpassPayload {
	scaled := make([]float64, len(result.Signal))
	for i, v := range result.Signal {
		scaled[i] = v * displayHalfRange
	}
	return models.BandpassPayload{
		ScaledValues:     scaled,
		Peaks:            append([]int(nil), result.Peaks...),
		Troughs:          append([]int(nil), result.Troughs...),
		Wavelength:       result.Wavelength,
		Amplitude:        result.Amplitude,
		PhaseDegrees:     result.PhaseDegrees,
		Method:           result.Method,
		FutureDays:       result.ExtendFuture,
		HistoricalLength: result.HistoricalLength,
	}
}

// toPeakCycles converts detected cycles for display, adding the calendar
// conversion of each trading-bar wavelength.
func toPeakCycles(detected []cycles.DetectedCycle) []models.PeakCycle {
	out := make([]models.PeakCycle, len(detected))
	for i, c := range detected {
		out[i] = models.PeakCycle{
			WavelengthDays: c.Wavelength,
			CalendarDays:   int(math.Round(float64(c.Wavelength) * cycles.TradingToCalendarRatio)),
			Power:          c.Power,
		}
	}
	return out
}

// buildPriceData assembles the chart spine: real dates and closes, then
// weekday-stepped future dates padded with nulls for the projection.
func buildPriceData(window *models.PriceSeries, futureDays int) models.PriceData {
	n := window.Len()
	dates := make([]string, 0, n+futureDays)
	prices := make([]*float64, 0, n+futureDays)

	hasDates := len(window.Dates) == n
	for i := 0; i < n; i++ {
		if hasDates {
			dates = append(dates, window.Dates[i].Format("2006-01-02"))
		}
		v := window.Closes[i]
		prices = append(prices, &v)
	}

	if hasDates && n > 0 {
		day := window.Dates[n-1]
		for i := 0; i < futureDays; i++ {
			day = nextTradingDay(day)
			dates = append(dates, day.Format("2006-01-02"))
			prices = append(prices, nil)
		}
	} else {
		for i := 0; i < futureDays; i++ {
			prices = append(prices, nil)
		}
	}
	return models.PriceData{Dates: dates, Prices: prices}
}

// nextTradingDay steps one calendar day forward, skipping weekends.
// Exchange holidays are not modelled; the projection spine only needs
// visually plausible spacing.
func nextTradingDay(day time.Time) time.Time {
	day = day.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

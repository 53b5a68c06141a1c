package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/irfndi/cyclescope-go/internal/config"
	"github.com/irfndi/cyclescope-go/internal/cycles"
	"github.com/irfndi/cyclescope-go/internal/models"
)

// AlertSender delivers a formatted cycle alert to one chat.
type AlertSender interface {
	SendAlert(ctx context.Context, chatID int64, alert *models.CycleAlert) error
}

// AlertService periodically scans watched symbols for newly confirmed
// extrema of their dominant cycle and pushes them to subscribers. The first
// scan of a symbol only records a baseline, so a restart does not replay
// extrema that were already announced.
type AlertService struct {
	source    PriceSource
	sender    AlertSender
	cfg       config.AlertsConfig
	engineCfg config.EngineConfig
	optimizer *ResourceOptimizer
	monitor   *PerformanceMonitor
	logger    *logrus.Logger

	// baseline holds the date of the newest extremum handled per symbol.
	// Dates stay stable as new bars shift window-relative indices.
	mu       sync.Mutex
	baseline map[string]time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewAlertService creates the scanner. Optimizer and monitor are optional;
// without a sender or watched symbols the scanner reports itself disabled.
func NewAlertService(
	source PriceSource,
	sender AlertSender,
	cfg config.AlertsConfig,
	engineCfg config.EngineConfig,
	optimizer *ResourceOptimizer,
	monitor *PerformanceMonitor,
	logger *logrus.Logger,
) *AlertService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AlertService{
		source:    source,
		sender:    sender,
		cfg:       cfg,
		engineCfg: engineCfg,
		optimizer: optimizer,
		monitor:   monitor,
		logger:    logger,
		baseline:  make(map[string]time.Time),
		stopChan:  make(chan struct{}),
	}
}

// Enabled reports whether the scanner has everything it needs to run.
func (as *AlertService) Enabled() bool {
	return as.cfg.Enabled && as.sender != nil && len(as.cfg.Symbols) > 0 && len(as.cfg.ChatIDs) > 0
}

// Start runs the scan loop until Stop is called or the context ends.
// Callers run it on its own goroutine. The first sweep happens immediately
// and seeds the per-symbol baselines.
func (as *AlertService) Start(ctx context.Context) {
	if !as.Enabled() {
		as.logger.Info("Alert scanning disabled")
		return
	}

	interval := as.cfg.ScanIntervalDuration()
	as.logger.WithFields(logrus.Fields{
		"interval": interval,
		"symbols":  as.cfg.Symbols,
		"chats":    len(as.cfg.ChatIDs),
	}).Info("Alert scanner started")

	as.scanOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			as.scanOnce(ctx)
		case <-as.stopChan:
			as.logger.Info("Alert scanner stopped")
			return
		case <-ctx.Done():
			as.logger.Info("Alert scanner stopped")
			return
		}
	}
}

// Stop ends the scan loop. Safe to call more than once.
func (as *AlertService) Stop() {
	as.stopOnce.Do(func() {
		close(as.stopChan)
	})
}

// scanOnce sweeps every watched symbol, bounded by the optimizer's scan
// concurrency. A failing symbol never cancels the rest of the sweep.
func (as *AlertService) scanOnce(ctx context.Context) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(as.scanLimit())

	var mu sync.Mutex
	var sent, failed int64

	for _, symbol := range as.cfg.Symbols {
		g.Go(func() error {
			alerts, err := as.scanSymbol(gctx, symbol)
			if err != nil {
				as.logger.WithError(err).WithField("symbol", symbol).Warn("Alert scan failed for symbol")
				return nil
			}
			s, f := as.deliver(gctx, alerts)
			mu.Lock()
			sent += s
			failed += f
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if as.monitor != nil {
		as.monitor.RecordAlertScan(time.Since(start), len(as.cfg.Symbols), sent, failed)
	}

	as.logger.WithFields(logrus.Fields{
		"symbols":  len(as.cfg.Symbols),
		"sent":     sent,
		"failed":   failed,
		"duration": time.Since(start),
	}).Info("Alert scan completed")
}

// scanSymbol detects the dominant cycle of one symbol and returns alerts
// for confirmed extrema newer than the recorded baseline.
func (as *AlertService) scanSymbol(ctx context.Context, symbol string) ([]*models.CycleAlert, error) {
	windowSize := as.engineCfg.WindowSize
	if windowSize <= 0 {
		windowSize = cycles.DefaultWindowSize
	}

	series, err := as.source.GetPriceSeries(ctx, symbol, windowSize)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if series.Len() < windowSize {
		windowSize = series.Len()
	}
	window := series.Tail(windowSize)

	spectrum, err := cycles.CurrentPowerSpectrum(window.Closes, cycles.HeatmapOptions{
		Grid:            gridFromConfig(as.engineCfg),
		WindowSize:      windowSize,
		MinPeakHeight:   as.engineCfg.MinPeakHeight,
		MinPeakDistance: as.engineCfg.MinPeakDistance,
	})
	if err != nil {
		return nil, err
	}

	detected := cycles.DetectCycles(spectrum, as.engineCfg.MinPeakHeight, as.engineCfg.MinPeakDistance)
	wavelength := as.dominantWavelength(detected)
	if wavelength == 0 {
		as.logger.WithField("symbol", symbol).Debug("No cycle above alert threshold")
		return nil, nil
	}

	result, err := cycles.Reconstruct(window.Closes, cycles.BandpassOptions{
		Wavelength:   wavelength,
		BandwidthPct: as.engineCfg.BandwidthPct,
	})
	if err != nil {
		return nil, err
	}

	peaks, troughs := cycles.FindConfirmedExtrema(result.Signal, wavelength, cycles.DefaultExclusionFraction)
	return as.newAlerts(symbol, wavelength, window, peaks, troughs), nil
}

// dominantWavelength picks the strongest detected cycle at or above the
// configured alert floor. Zero means nothing qualified.
func (as *AlertService) dominantWavelength(detected []cycles.DetectedCycle) int {
	for _, c := range detected {
		if as.cfg.MinWavelength > 0 && c.Wavelength < as.cfg.MinWavelength {
			continue
		}
		return c.Wavelength
	}
	return 0
}

// newAlerts diffs confirmed extrema against the symbol baseline and advances
// it. The baseline moves even when delivery later fails: a cycle alert is
// stale within days and outage handling belongs to the send policy.
func (as *AlertService) newAlerts(symbol string, wavelength int, window *models.PriceSeries, peaks, troughs []cycles.Extremum) []*models.CycleAlert {
	// Series validation permits an empty Dates slice. Without bar dates the
	// baseline diff has nothing to anchor on, so the symbol produces no
	// alerts rather than a panic.
	if len(window.Dates) != window.Len() {
		as.logger.WithField("symbol", symbol).Warn("Skipping alert scan for series without bar dates")
		return nil
	}

	type stamped struct {
		ext  cycles.Extremum
		kind string
	}
	all := make([]stamped, 0, len(peaks)+len(troughs))
	for _, p := range peaks {
		all = append(all, stamped{p, models.AlertKindPeak})
	}
	for _, t := range troughs {
		all = append(all, stamped{t, models.AlertKindTrough})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ext.Index < all[j].ext.Index })

	as.mu.Lock()
	defer as.mu.Unlock()

	last, seen := as.baseline[symbol]
	newest := last

	var alerts []*models.CycleAlert
	for _, s := range all {
		if s.ext.Index < 0 || s.ext.Index >= window.Len() {
			continue
		}
		date := window.Dates[s.ext.Index]
		if date.After(newest) {
			newest = date
		}
		if seen && date.After(last) {
			alerts = append(alerts, &models.CycleAlert{
				ID:         uuid.New(),
				Symbol:     symbol,
				Wavelength: wavelength,
				Kind:       s.kind,
				BarIndex:   s.ext.Index,
				BarDate:    date,
				Price:      decimal.NewFromFloat(window.Closes[s.ext.Index]),
				CreatedAt:  time.Now(),
			})
		}
	}
	as.baseline[symbol] = newest

	return alerts
}

// deliver fans one batch of alerts out to every subscribed chat.
func (as *AlertService) deliver(ctx context.Context, alerts []*models.CycleAlert) (sent, failed int64) {
	for _, alert := range alerts {
		for _, chatID := range as.cfg.ChatIDs {
			if err := as.sender.SendAlert(ctx, chatID, alert); err != nil {
				as.logger.WithError(err).WithFields(logrus.Fields{
					"symbol":  alert.Symbol,
					"chat_id": chatID,
				}).Error("Failed to deliver cycle alert")
				failed++
				continue
			}
			sent++
		}
	}
	return sent, failed
}

// scanLimit resolves how many symbols may scan concurrently.
func (as *AlertService) scanLimit() int {
	limit := 4
	if as.optimizer != nil {
		if scans := as.optimizer.GetOptimalConcurrency().MaxConcurrentScans; scans > 0 {
			limit = scans
		}
	}
	return limit
}

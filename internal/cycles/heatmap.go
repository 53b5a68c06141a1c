package cycles

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Rolling-scan defaults. End-points advance one trading week (5 bars) at a
// time; the grid spans the wavelengths the scanner is calibrated for.
const (
	weekStride         = 5
	minGridWavelength  = 100
	maxGridWavelength  = 800
	coarseGridStep     = 5
	DefaultWindowSize  = 4000
	DefaultPeakHeight  = 0.25
	DefaultPeakSpacing = 8
)

// DefaultGrid returns the full-resolution scan grid, 100..800 bars step 1.
func DefaultGrid() []int {
	grid := make([]int, 0, maxGridWavelength-minGridWavelength+1)
	for w := minGridWavelength; w <= maxGridWavelength; w++ {
		grid = append(grid, w)
	}
	return grid
}

// CoarseGrid returns the step-5 grid used when scan latency matters more
// than wavelength resolution.
func CoarseGrid() []int {
	grid := make([]int, 0, (maxGridWavelength-minGridWavelength)/coarseGridStep+1)
	for w := minGridWavelength; w <= maxGridWavelength; w += coarseGridStep {
		grid = append(grid, w)
	}
	return grid
}

// HeatmapOptions configure one rolling scan. Zero values select defaults;
// long-cycle suppression is on unless explicitly disabled.
type HeatmapOptions struct {
	Grid                        []int
	WindowSize                  int
	DisableLongCycleSuppression bool
	Workers                     int
	MinPeakHeight               float64
	MinPeakDistance             int
}

func (o HeatmapOptions) withDefaults() HeatmapOptions {
	if len(o.Grid) == 0 {
		o.Grid = DefaultGrid()
	}
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.MinPeakHeight <= 0 {
		o.MinPeakHeight = DefaultPeakHeight
	}
	if o.MinPeakDistance <= 0 {
		o.MinPeakDistance = DefaultPeakSpacing
	}
	return o
}

// BuildHeatmap scans the trailing WindowSize bars at weekly-spaced
// end-points going back (len(prices)-WindowSize)/5 steps, normalizes the
// whole surface by its single global maximum, and extracts the dominant
// cycles of the current spectrum. Rows are ordered oldest first; the final
// row is the current spectrum. Weeks are computed in parallel; each worker
// owns its row, and normalization after the pool drains is the only barrier.
func BuildHeatmap(ctx context.Context, prices []float64, opts HeatmapOptions) (*Heatmap, error) {
	opts = opts.withDefaults()
	if err := validateSeries(prices); err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}
	if len(prices) < opts.WindowSize {
		return nil, fmt.Errorf("heatmap: need at least %d bars, have %d", opts.WindowSize, len(prices))
	}

	maxWeeks := (len(prices) - opts.WindowSize) / weekStride
	if maxWeeks < 1 {
		// Series exactly window-sized: the current end-point is still a
		// valid scan.
		maxWeeks = 1
	}

	rows := make([][]float64, maxWeeks)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for week := 0; week < maxWeeks; week++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows[maxWeeks-1-week] = SpectrumForWeek(prices, week, opts.Grid, opts.WindowSize, !opts.DisableLongCycleSuppression)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var globalMax float64
	for _, row := range rows {
		for _, v := range row {
			if v > globalMax {
				globalMax = v
			}
		}
	}
	if globalMax > 0 {
		inv := 1 / globalMax
		for _, row := range rows {
			for i := range row {
				row[i] *= inv
			}
		}
	}

	current := rows[len(rows)-1]
	spectrum := make([]float64, len(current))
	copy(spectrum, current)

	cycles := DetectCycles(&PowerSpectrum{Wavelengths: opts.Grid, Power: current}, opts.MinPeakHeight, opts.MinPeakDistance)

	return &Heatmap{
		Rows:            rows,
		Wavelengths:     append([]int(nil), opts.Grid...),
		CurrentSpectrum: spectrum,
		GlobalMax:       globalMax,
		Cycles:          cycles,
	}, nil
}

// CurrentPowerSpectrum is the single-end-point variant of BuildHeatmap: one
// post-processed row over the trailing window, normalized by its own
// maximum. Used when callers need a spectrum without the rolling history.
func CurrentPowerSpectrum(prices []float64, opts HeatmapOptions) (*PowerSpectrum, error) {
	opts = opts.withDefaults()
	if err := validateSeries(prices); err != nil {
		return nil, fmt.Errorf("power spectrum: %w", err)
	}
	if len(prices) < opts.WindowSize {
		return nil, fmt.Errorf("power spectrum: need at least %d bars, have %d", opts.WindowSize, len(prices))
	}
	row := SpectrumForWeek(prices, 0, opts.Grid, opts.WindowSize, !opts.DisableLongCycleSuppression)
	var max float64
	for _, v := range row {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for i := range row {
			row[i] /= max
		}
	}
	return &PowerSpectrum{
		Wavelengths: append([]int(nil), opts.Grid...),
		Power:       row,
	}, nil
}

// DetectCycles runs peak extraction over a normalized spectrum and returns
// the detected cycles strongest first. Zero thresholds fall back to the
// package defaults.
func DetectCycles(spectrum *PowerSpectrum, minHeight float64, minDistance int) []DetectedCycle {
	if spectrum == nil || len(spectrum.Power) == 0 {
		return nil
	}
	if minHeight <= 0 {
		minHeight = DefaultPeakHeight
	}
	if minDistance <= 0 {
		minDistance = DefaultPeakSpacing
	}

	peakIdx := findPeaks(spectrum.Power, peakCriteria{
		HasHeight:   true,
		MinHeight:   minHeight,
		MinDistance: minDistance,
	})
	cycles := make([]DetectedCycle, 0, len(peakIdx))
	for _, pi := range peakIdx {
		cycles = append(cycles, DetectedCycle{Wavelength: spectrum.Wavelengths[pi], Power: spectrum.Power[pi]})
	}
	sort.SliceStable(cycles, func(i, j int) bool { return cycles[i].Power > cycles[j].Power })
	return cycles
}

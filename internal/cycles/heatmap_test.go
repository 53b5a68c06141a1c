package cycles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrids(t *testing.T) {
	full := DefaultGrid()
	assert.Len(t, full, 701)
	assert.Equal(t, 100, full[0])
	assert.Equal(t, 800, full[len(full)-1])

	coarse := CoarseGrid()
	assert.Len(t, coarse, 141)
	assert.Equal(t, 100, coarse[0])
	assert.Equal(t, 800, coarse[len(coarse)-1])
}

func TestBuildHeatmapTooShort(t *testing.T) {
	_, err := BuildHeatmap(context.Background(), sineSeries(100, 40, 1, 10), HeatmapOptions{WindowSize: 600})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 600 bars")
}

func TestBuildHeatmapNormalizationAndShape(t *testing.T) {
	prices := sineSeries(650, 150, 5, 100)
	grid := []int{100, 110, 120, 130, 140, 150, 160, 170, 180, 190, 200}
	hm, err := BuildHeatmap(context.Background(), prices, HeatmapOptions{
		Grid:       grid,
		WindowSize: 600,
		Workers:    2,
	})
	require.NoError(t, err)

	// (650-600)/5 weekly end-points, oldest first.
	require.Len(t, hm.Rows, 10)
	assert.Equal(t, grid, hm.Wavelengths)
	assert.Greater(t, hm.GlobalMax, 0.0)

	maxSeen := 0.0
	for _, row := range hm.Rows {
		require.Len(t, row, len(grid))
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			if v > maxSeen {
				maxSeen = v
			}
		}
	}
	assert.InDelta(t, 1.0, maxSeen, 1e-9, "the global maximum cell must normalize to exactly 1")

	assert.Equal(t, hm.Rows[len(hm.Rows)-1], hm.CurrentSpectrum,
		"the final row is the current spectrum")

	require.NotEmpty(t, hm.Cycles)
	assert.InDelta(t, 150, float64(hm.Cycles[0].Wavelength), 20)
	for i := 0; i+1 < len(hm.Cycles); i++ {
		assert.GreaterOrEqual(t, hm.Cycles[i].Power, hm.Cycles[i+1].Power,
			"detected cycles are ordered strongest first")
	}
}

func TestBuildHeatmapExactWindow(t *testing.T) {
	prices := sineSeries(600, 150, 5, 100)
	hm, err := BuildHeatmap(context.Background(), prices, HeatmapOptions{
		Grid:       []int{120, 150, 180},
		WindowSize: 600,
	})
	require.NoError(t, err)
	assert.Len(t, hm.Rows, 1, "a window-sized series still yields the current scan")
}

func TestBuildHeatmapUnresolvableGrid(t *testing.T) {
	// Every grid wavelength exceeds half the window, so the whole surface
	// is zero and stays zero after normalization.
	prices := sineSeries(620, 150, 5, 100)
	hm, err := BuildHeatmap(context.Background(), prices, HeatmapOptions{
		Grid:       []int{400, 500, 600},
		WindowSize: 600,
	})
	require.NoError(t, err)
	assert.Zero(t, hm.GlobalMax)
	for _, row := range hm.Rows {
		for _, v := range row {
			assert.Zero(t, v)
		}
	}
	assert.Empty(t, hm.Cycles)
}

func TestBuildHeatmapCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildHeatmap(ctx, sineSeries(700, 150, 5, 100), HeatmapOptions{
		Grid:       []int{100, 150, 200},
		WindowSize: 600,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCurrentPowerSpectrum(t *testing.T) {
	prices := sineSeries(600, 150, 5, 100)
	spec, err := CurrentPowerSpectrum(prices, HeatmapOptions{
		Grid:       []int{100, 120, 140, 160, 180, 200},
		WindowSize: 600,
	})
	require.NoError(t, err)
	require.Len(t, spec.Power, 6)

	maxV := 0.0
	for _, v := range spec.Power {
		assert.GreaterOrEqual(t, v, 0.0)
		if v > maxV {
			maxV = v
		}
	}
	assert.InDelta(t, 1.0, maxV, 1e-9, "single-row spectra normalize to their own maximum")

	_, err = CurrentPowerSpectrum(sineSeries(100, 40, 1, 10), HeatmapOptions{WindowSize: 600})
	assert.Error(t, err)
}

func TestDetectCycles(t *testing.T) {
	spectrum := &PowerSpectrum{
		Wavelengths: []int{100, 110, 120, 130, 140, 150, 160, 170, 180, 190, 200},
		Power:       []float64{0.1, 0.2, 0.9, 0.3, 0.1, 0.1, 0.6, 0.2, 0.1, 0.05, 0.02},
	}

	cycles := DetectCycles(spectrum, 0.25, 2)
	require.Len(t, cycles, 2)
	assert.Equal(t, 120, cycles[0].Wavelength, "strongest peak first")
	assert.InDelta(t, 0.9, cycles[0].Power, 1e-12)
	assert.Equal(t, 160, cycles[1].Wavelength)

	// A height floor above the weaker peak drops it.
	cycles = DetectCycles(spectrum, 0.7, 2)
	require.Len(t, cycles, 1)
	assert.Equal(t, 120, cycles[0].Wavelength)
}

func TestDetectCyclesEmpty(t *testing.T) {
	assert.Nil(t, DetectCycles(nil, 0.25, 8))
	assert.Empty(t, DetectCycles(&PowerSpectrum{}, 0.25, 8))
}

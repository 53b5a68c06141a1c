package cycles

import (
	"fmt"
	"math"
)

// DefaultLookbackCycles is how many recent cycles the health evaluator
// compares against the rest of history.
const DefaultLookbackCycles = 3

// Health status buckets.
const (
	StatusHealthy      = "Healthy"
	StatusDegrading    = "Degrading"
	StatusUnstable     = "Unstable"
	StatusInsufficient = "Insufficient data"
)

// ComputeHealth scores amplitude consistency and wavelength stability of an
// oscillating signal against its expected period. Needs at least 4 peaks
// and 4 troughs; with less history it returns the neutral score 50 rather
// than guessing. Deductions: amplitude drop >50%/-40, >25%/-25, >10%/-10;
// period drift >20%/-35, >10%/-20, >5%/-10; spacing CV >25%/-15, >15%/-8.
func ComputeHealth(signal []float64, expectedWavelength, lookbackCycles int) *HealthResult {
	if lookbackCycles <= 0 {
		lookbackCycles = DefaultLookbackCycles
	}
	insufficient := &HealthResult{
		Score:           50,
		Status:          StatusInsufficient,
		AmplitudeStatus: "Not enough cycles",
		PeriodStatus:    "Not enough cycles",
	}
	if expectedWavelength <= 0 || len(signal) == 0 {
		return insufficient
	}

	crit := peakCriteria{MinDistance: int(float64(expectedWavelength) * separationFraction)}
	peaks := findPeaks(signal, crit)
	troughs := findTroughs(signal, crit)
	if len(peaks) < 4 || len(troughs) < 4 {
		return insufficient
	}

	// Peak-to-following-trough swing per cycle.
	var amplitudes []float64
	for i := 0; i+1 < len(peaks); i++ {
		for _, t := range troughs {
			if t > peaks[i] && t < peaks[i+1] {
				amplitudes = append(amplitudes, math.Abs(signal[peaks[i]]-signal[t]))
				break
			}
		}
	}
	if len(amplitudes) < 4 {
		return insufficient
	}

	lookback := lookbackCycles
	if half := len(amplitudes) / 2; lookback > half {
		lookback = half
	}
	recentAmp := mean(amplitudes[len(amplitudes)-lookback:])
	historicalAmp := mean(amplitudes[:len(amplitudes)-lookback])

	var ampChangePct float64
	if historicalAmp > 0 {
		ampChangePct = (recentAmp - historicalAmp) / historicalAmp * 100
	}

	spacings := make([]float64, 0, len(peaks)-1)
	for i := 0; i+1 < len(peaks); i++ {
		spacings = append(spacings, float64(peaks[i+1]-peaks[i]))
	}
	recentSpacings := spacings[len(spacings)-lookback:]
	recentWavelength := mean(recentSpacings)

	expected := float64(expectedWavelength)
	driftPct := (recentWavelength - expected) / expected * 100
	var spacingCVPct float64
	if recentWavelength != 0 {
		spacingCVPct = stddev(recentSpacings) / recentWavelength * 100
	}

	score := 100.0
	var ampStatus string
	switch {
	case ampChangePct < -50:
		score -= 40
		ampStatus = fmt.Sprintf("Weakening (%.1f%%)", ampChangePct)
	case ampChangePct < -25:
		score -= 25
		ampStatus = fmt.Sprintf("Declining (%.1f%%)", ampChangePct)
	case ampChangePct < -10:
		score -= 10
		ampStatus = fmt.Sprintf("Slightly down (%.1f%%)", ampChangePct)
	default:
		ampStatus = fmt.Sprintf("Stable (%+.1f%%)", ampChangePct)
	}

	var periodStatus string
	switch absDrift := math.Abs(driftPct); {
	case absDrift > 20:
		score -= 35
		periodStatus = fmt.Sprintf("Drifting (%+.1f%%)", driftPct)
	case absDrift > 10:
		score -= 20
		periodStatus = fmt.Sprintf("Shifting (%+.1f%%)", driftPct)
	case absDrift > 5:
		score -= 10
		periodStatus = fmt.Sprintf("Minor drift (%+.1f%%)", driftPct)
	default:
		periodStatus = fmt.Sprintf("Stable (%+.1f%%)", driftPct)
	}

	switch {
	case spacingCVPct > 25:
		score -= 15
		periodStatus += " (erratic)"
	case spacingCVPct > 15:
		score -= 8
	}

	status := StatusUnstable
	switch {
	case score >= 80:
		status = StatusHealthy
	case score >= 60:
		status = StatusDegrading
	}

	return &HealthResult{
		Score:              int(score),
		Status:             status,
		AmplitudeStatus:    ampStatus,
		PeriodStatus:       periodStatus,
		AmplitudeTrendPct:  ampChangePct,
		WavelengthDriftPct: driftPct,
		Details: HealthDetails{
			RecentAmplitude:       recentAmp,
			HistoricalAmplitude:   historicalAmp,
			RecentWavelength:      recentWavelength,
			ExpectedWavelength:    expected,
			WavelengthVariancePct: spacingCVPct,
		},
	}
}

package cycles

import "math"

// BartelsSignificanceThreshold separates genuine cycles from spurious ones.
const BartelsSignificanceThreshold = 49.0

// ComputeBartels runs the Bartels-style periodicity test on a detrended or
// band-limited signal: autocorrelation at the target lag (40%), phase
// stability between consecutive whole-cycle segments (40%), and amplitude
// consistency across segments (20%), expressed 0-100. Signals shorter than
// two wavelengths, or with no variance, score zero.
func ComputeBartels(signal []float64, wavelength int) *BartelsResult {
	zero := &BartelsResult{Grade: "D"}
	if wavelength <= 0 || len(signal) < wavelength*2 {
		return zero
	}

	m := mean(signal)
	var sumSq float64
	for _, v := range signal {
		d := v - m
		sumSq += d * d
	}
	if sumSq == 0 {
		return zero
	}

	var autocorrNum float64
	for i := 0; i+wavelength < len(signal); i++ {
		autocorrNum += (signal[i] - m) * (signal[i+wavelength] - m)
	}
	autocorr := autocorrNum / sumSq

	numCycles := len(signal) / wavelength
	segments := make([][]float64, 0, numCycles)
	for i := 0; i < numCycles; i++ {
		start := i * wavelength
		segments = append(segments, signal[start:start+wavelength])
	}

	var corrSum float64
	corrCount := 0
	for i := 0; i+1 < len(segments); i++ {
		if r, ok := pearson(segments[i], segments[i+1]); ok {
			corrSum += math.Abs(r)
			corrCount++
		}
	}
	if corrCount == 0 {
		return zero
	}
	phaseStability := corrSum / float64(corrCount)

	peakAmps := make([]float64, len(segments))
	for i, seg := range segments {
		var peak float64
		for _, v := range seg {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
		peakAmps[i] = peak
	}
	amplitudeCV := stddev(peakAmps) / (mean(peakAmps) + 1e-10)
	amplitudeConsistency := math.Exp(-amplitudeCV)

	autocorrScore := (autocorr + 1) / 2
	if autocorrScore < 0 {
		autocorrScore = 0
	}
	if autocorrScore > 1 {
		autocorrScore = 1
	}

	score := (0.4*autocorrScore + 0.4*phaseStability + 0.2*amplitudeConsistency) * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &BartelsResult{
		Score:                score,
		Grade:                bartelsGrade(score),
		AutocorrScore:        autocorrScore,
		PhaseStability:       phaseStability,
		AmplitudeConsistency: amplitudeConsistency,
		Genuine:              score >= BartelsSignificanceThreshold,
	}
}

func bartelsGrade(score float64) string {
	switch {
	case score >= 75:
		return "A"
	case score >= 60:
		return "B"
	case score >= BartelsSignificanceThreshold:
		return "C"
	default:
		return "D"
	}
}

// pearson returns the correlation coefficient of two equal-length series.
// ok is false when either side has no variance.
func pearson(a, b []float64) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	meanA, meanB := mean(a), mean(b)
	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}

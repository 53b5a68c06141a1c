package cycles

import (
	"math"
	"sort"
)

// ComputeRating classifies one cycle the way a spectral analyst would:
// amplitude and frequency stationarity of the band-limited signal, spectral
// isolation of its peak, signal-to-noise against the spectrum floor, and
// gain rank among all peaks. Class A demands near-stationary behavior with
// a dominant, isolated peak; D marks heavily modulated, risky signals.
func ComputeRating(signal []float64, wavelength int, spectrum *PowerSpectrum) *RatingResult {
	ampStat := amplitudeStationarity(signal)
	freqStat := frequencyStationarity(signal, float64(wavelength))

	peakIdx := nearestWavelengthIndex(spectrum, wavelength)
	isolation := spectralIsolation(spectrum, peakIdx)
	snr := spectrumSNR(spectrum, peakIdx)
	rank := spectrumGainRank(spectrum, peakIdx)

	var class string
	var base float64
	switch {
	case ampStat > 0.8 && freqStat > 0.8 && rank == 1 && isolation > 0.7 && snr > 5.0:
		class, base = "A", 90
	case ampStat > 0.7 && freqStat > 0.7 && rank <= 2 && isolation > 0.6 && snr > 3.0:
		class, base = "B", 75
	case ampStat > 0.6 && freqStat > 0.6 && rank <= 2 && snr > 2.0:
		class, base = "C", 60
	default:
		class, base = "D", 40
	}

	score := base + ampStat*3 + freqStat*3 + isolation*2 + math.Min(snr, 10)*0.5
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return &RatingResult{
		Class:                 class,
		Score:                 score,
		AmplitudeStationarity: ampStat,
		FrequencyStationarity: freqStat,
		SpectralIsolation:     isolation,
		SNR:                   snr,
		GainRank:              rank,
	}
}

// amplitudeStationarity measures how stable peak-to-trough swings stay over
// time, mapping the coefficient of variation through exp(-2cv) so 1 is
// perfectly stationary.
func amplitudeStationarity(signal []float64) float64 {
	peaks := findPeaks(signal, peakCriteria{})
	troughs := findTroughs(signal, peakCriteria{})
	if len(peaks) < 3 || len(troughs) < 3 {
		return 0
	}

	pairs := len(peaks)
	if len(troughs) < pairs {
		pairs = len(troughs)
	}
	amplitudes := make([]float64, 0, pairs)
	for i := 0; i < pairs; i++ {
		amplitudes = append(amplitudes, math.Abs(signal[peaks[i]]-signal[troughs[i]]))
	}
	if len(amplitudes) < 2 {
		return 0
	}

	m := mean(amplitudes)
	if m == 0 {
		return 0
	}
	return math.Exp(-2 * stddev(amplitudes) / m)
}

// frequencyStationarity measures wavelength stability from zero-crossing
// spacing, additionally penalizing deviation from the expected wavelength.
func frequencyStationarity(signal []float64, expected float64) float64 {
	crossings := zeroCrossings(signal)
	if len(crossings) < 4 {
		return 0
	}

	var spans []float64
	for i := 0; i+2 < len(crossings); i += 2 {
		spans = append(spans, float64(crossings[i+2]-crossings[i]))
	}
	if len(spans) < 2 {
		return 0
	}

	m := mean(spans)
	if m == 0 || expected <= 0 {
		return 0
	}
	cv := stddev(spans) / m
	wavelengthError := math.Abs(m-expected) / expected
	return math.Exp(-2*cv - wavelengthError)
}

// zeroCrossings returns the indices where the sign of the series changes.
func zeroCrossings(signal []float64) []int {
	var out []int
	for i := 0; i+1 < len(signal); i++ {
		if sign(signal[i]) != sign(signal[i+1]) {
			out = append(out, i)
		}
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// nearestWavelengthIndex locates the spectrum bin closest to the target.
func nearestWavelengthIndex(spectrum *PowerSpectrum, wavelength int) int {
	best, bestDist := -1, math.MaxInt
	for i, w := range spectrum.Wavelengths {
		dist := w - wavelength
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// spectralIsolation scores how far, in wavelength and in power dominance,
// the target peak sits from its nearest competing peak. 1 means perfectly
// isolated.
func spectralIsolation(spectrum *PowerSpectrum, peakIdx int) float64 {
	if peakIdx < 0 || peakIdx >= len(spectrum.Power) {
		return 0
	}
	peakPower := spectrum.Power[peakIdx]

	allPeaks := findPeaks(spectrum.Power, peakCriteria{HasHeight: true, MinHeight: 0.1, MinDistance: 3})
	if len(allPeaks) == 0 {
		return 0
	}

	closest, closestDist := -1, math.MaxInt
	for _, p := range allPeaks {
		if p == peakIdx {
			continue
		}
		dist := p - peakIdx
		if dist < 0 {
			dist = -dist
		}
		if dist < closestDist {
			closest, closestDist = p, dist
		}
	}
	if closest < 0 {
		return 1.0
	}

	powerRatio := peakPower / (spectrum.Power[closest] + 1e-10)
	targetWl := float64(spectrum.Wavelengths[peakIdx])
	nearestWl := float64(spectrum.Wavelengths[closest])
	separation := math.Abs(targetWl-nearestWl) / targetWl

	isolation := separation*0.5 + math.Tanh(powerRatio-1)*0.5
	if isolation > 1 {
		isolation = 1
	}
	if isolation < 0 {
		isolation = 0
	}
	return isolation
}

// spectrumSNR compares the peak against the mean power of two noise bands
// 10 to 30 bins away on each side.
func spectrumSNR(spectrum *PowerSpectrum, peakIdx int) float64 {
	const window = 10
	n := len(spectrum.Power)
	if peakIdx < 0 || peakIdx >= n {
		return 0
	}
	peakPower := spectrum.Power[peakIdx]

	var noise []float64
	lo, hi := peakIdx-window-20, peakIdx-window
	if lo < 0 {
		lo = 0
	}
	if hi < 0 {
		hi = 0
	}
	if hi > lo {
		noise = append(noise, spectrum.Power[lo:hi]...)
	}
	lo, hi = peakIdx+window, peakIdx+window+20
	if lo > n {
		lo = n
	}
	if hi > n {
		hi = n
	}
	if hi > lo {
		noise = append(noise, spectrum.Power[lo:hi]...)
	}
	if len(noise) == 0 {
		return 0
	}

	noiseLevel := mean(noise)
	if noiseLevel == 0 {
		return 100
	}
	return peakPower / noiseLevel
}

// spectrumGainRank ranks the target against the strongest spectrum values:
// 1 when within 5% of the maximum, 2 when within 5% of the runner-up,
// else 3.
func spectrumGainRank(spectrum *PowerSpectrum, peakIdx int) int {
	if peakIdx < 0 || peakIdx >= len(spectrum.Power) {
		return 3
	}
	sorted := append([]float64(nil), spectrum.Power...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	peakPower := spectrum.Power[peakIdx]
	switch {
	case peakPower >= sorted[0]*0.95:
		return 1
	case len(sorted) > 1 && peakPower >= sorted[1]*0.95:
		return 2
	default:
		return 3
	}
}

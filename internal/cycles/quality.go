package cycles

import (
	"fmt"
	"math"
	"sort"
)

// HarmonicTolerance is the relative tolerance for treating two wavelengths
// as harmonically related by a 2:1, 3:1 or 4:1 ratio.
const HarmonicTolerance = 0.15

const snrFloorDb = -100.0

var harmonicRatios = []float64{2, 3, 4}

// ComputeQuality scores one detected cycle on a 1 to 4 star scale from two
// components worth up to 50 points each: signal-to-noise ratio, comparing
// the variance the band-limited cycle estimate explains in the log-detrended
// series against the residual it leaves, and harmonic family membership
// among the detected wavelengths, following Hurst's principle that genuine
// cycles come in 2:1, 3:1 and 4:1 related groups. The estimate's amplitude
// is fit to the detrended series by least squares before the variance split,
// since wavelet coefficients are not in data units.
func ComputeQuality(prices []float64, wavelength int, detected []DetectedCycle, bandwidthPct float64) (*QualityResult, error) {
	signal, err := FilteredSignal(prices, wavelength, bandwidthPct)
	if err != nil {
		return nil, fmt.Errorf("quality: %w", err)
	}
	detrended := preprocess(prices, false)

	var num, den float64
	for i := range signal {
		num += detrended[i] * signal[i]
		den += signal[i] * signal[i]
	}
	alpha := 0.0
	if den > 0 {
		alpha = num / den
	}

	scaled := make([]float64, len(signal))
	noise := make([]float64, len(signal))
	for i := range signal {
		scaled[i] = alpha * signal[i]
		noise[i] = detrended[i] - scaled[i]
	}

	snr := 100.0
	if noisePower := variance(noise); noisePower > 0 {
		snr = variance(scaled) / noisePower
	}
	snrDb := snrFloorDb
	if snr > 0 {
		snrDb = 10 * math.Log10(snr)
	}

	var snrQuality string
	var snrScore int
	switch {
	case snr >= 5:
		snrQuality, snrScore = "High", 50
	case snr >= 3:
		snrQuality, snrScore = "Medium", 40
	case snr >= 2:
		snrQuality, snrScore = "Low", 25
	default:
		snrQuality, snrScore = "Poor", 10
	}

	family := harmonicFamily(wavelength, detected)
	partners := len(family) - 1
	var harmonicScore int
	switch {
	case partners >= 3:
		harmonicScore = 50
	case partners == 2:
		harmonicScore = 40
	case partners == 1:
		harmonicScore = 25
	}

	score := snrScore + harmonicScore
	stars, label := starRating(score)

	return &QualityResult{
		Score:            score,
		Stars:            stars,
		Label:            label,
		SNR:              snr,
		SNRDb:            snrDb,
		SNRQuality:       snrQuality,
		SNRScore:         snrScore,
		HarmonicScore:    harmonicScore,
		HarmonicPartners: partners,
		Family:           family,
	}, nil
}

// harmonicFamily returns the sorted connected component containing target
// under the relation "wavelength ratio within tolerance of a harmonic
// ratio", target itself included. A lone target means an orphan cycle.
func harmonicFamily(target int, detected []DetectedCycle) []int {
	seen := map[int]bool{target: true}
	wavelengths := []int{target}
	for _, c := range detected {
		if c.Wavelength > 0 && !seen[c.Wavelength] {
			seen[c.Wavelength] = true
			wavelengths = append(wavelengths, c.Wavelength)
		}
	}

	n := len(wavelengths)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if harmonicallyRelated(wavelengths[i], wavelengths[j]) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}

	visited := make([]bool, n)
	visited[0] = true
	stack := []int{0}
	var family []int
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		family = append(family, wavelengths[node])
		for _, nb := range adj[node] {
			if !visited[nb] {
				visited[nb] = true
				stack = append(stack, nb)
			}
		}
	}
	sort.Ints(family)
	return family
}

// harmonicallyRelated normalizes the ratio of two wavelengths to at least 1
// and checks it against each harmonic ratio with relative tolerance.
func harmonicallyRelated(w1, w2 int) bool {
	lo, hi := float64(w1), float64(w2)
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return false
	}
	ratio := hi / lo
	for _, h := range harmonicRatios {
		if math.Abs(ratio-h)/h <= HarmonicTolerance {
			return true
		}
	}
	return false
}

func starRating(score int) (stars int, label string) {
	switch {
	case score >= 80:
		return 4, "Excellent"
	case score >= 60:
		return 3, "Good"
	case score >= 40:
		return 2, "Fair"
	default:
		return 1, "Poor"
	}
}

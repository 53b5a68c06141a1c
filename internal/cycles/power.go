package cycles

import (
	"math"
	"sort"
)

// Kernel sizing for power estimation: between 4 and 8 full periods,
// proportional to how much data exists relative to the wavelength.
const (
	minKernelCycles = 4
	maxKernelCycles = 8
)

// computePower estimates oscillatory power at one wavelength for a detrended
// window. The kernel slides at a stride of wavelength/8 and squared
// convolution magnitudes are aggregated as a root mean. Wavelengths longer
// than half the window cannot be resolved and score exactly zero.
func computePower(detrended []float64, wavelength int) float64 {
	n := len(detrended)
	if wavelength <= 0 || wavelength > n/2 {
		return 0
	}

	freq := 1.0 / float64(wavelength)
	cycles := n / wavelength
	if cycles < minKernelCycles {
		cycles = minKernelCycles
	}
	if cycles > maxKernelCycles {
		cycles = maxKernelCycles
	}
	kernelLen := wavelength * cycles
	if kernelLen > n {
		kernelLen = n
	}
	kernel := morletWavelet(freq, kernelLen)

	step := wavelength / 8
	if step < 1 {
		step = 1
	}

	var total float64
	count := 0
	for start := 0; start+kernelLen <= n; start += step {
		re, im := conjDot(detrended[start:start+kernelLen], kernel)
		total += re*re + im*im
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(total / float64(count))
}

// spectrumRow computes raw power across the grid and applies the scanner
// post-processing chain: 3-point median despike, 5-point box smoothing, then
// peak enhancement above the row mean.
func spectrumRow(detrended []float64, grid []int) []float64 {
	if len(grid) == 0 {
		return nil
	}
	powers := make([]float64, len(grid))
	for i, w := range grid {
		powers[i] = computePower(detrended, w)
	}
	return enhancePeaks(boxSmooth5(medianFilter3(powers)))
}

func medianFilter3(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - 1
		if lo < 0 {
			lo = 0
		}
		hi := i + 2
		if hi > len(values) {
			hi = len(values)
		}
		out[i] = median(values[lo:hi])
	}
	return out
}

func median(window []float64) float64 {
	buf := make([]float64, len(window))
	copy(buf, window)
	sort.Float64s(buf)
	mid := len(buf) / 2
	if len(buf)%2 == 1 {
		return buf[mid]
	}
	return (buf[mid-1] + buf[mid]) / 2
}

// boxSmooth5 averages over a 5-wide window, treating samples past the edges
// as zero so edge cells are pulled down rather than padded.
func boxSmooth5(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		var sum float64
		for j := i - 2; j <= i+2; j++ {
			if j >= 0 && j < len(values) {
				sum += values[j]
			}
		}
		out[i] = sum / 5
	}
	return out
}

// enhancePeaks doubles the excursion above the row mean for cells that
// exceed it, sharpening ridge contrast without touching sub-mean cells.
func enhancePeaks(values []float64) []float64 {
	m := mean(values)
	out := make([]float64, len(values))
	for i, v := range values {
		if v > m {
			out[i] = m + (v-m)*2
		} else {
			out[i] = v
		}
	}
	return out
}

// weekWindow returns the trailing windowSize bars ending week*5 bars before
// the series end, or nil when that window falls outside the series.
func weekWindow(prices []float64, week, windowSize int) []float64 {
	end := len(prices) - week*weekStride
	start := end - windowSize
	if start < 0 || end > len(prices) {
		return nil
	}
	return prices[start:end]
}

// SpectrumForWeek computes one post-processed spectrum row for the rolling
// end-point `week` steps back from the series end. Out-of-range windows
// yield an all-zero row so callers can assemble fixed-shape matrices.
func SpectrumForWeek(prices []float64, week int, grid []int, windowSize int, suppressLongCycles bool) []float64 {
	window := weekWindow(prices, week, windowSize)
	if window == nil {
		return make([]float64, len(grid))
	}
	detrended := preprocess(window, suppressLongCycles)
	return spectrumRow(detrended, grid)
}

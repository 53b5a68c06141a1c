package cycles

import (
	"math"
	"sync"
)

// Quality factor bounds. The divisor ties bandwidth to wavelength while the
// cap keeps long-wavelength kernels from becoming arbitrarily narrowband.
// One policy is applied uniformly across power estimation and bandpass
// reconstruction.
const (
	qDivisor = 42.94
	qCap     = 15.0
)

// qFactor returns the quality factor for a wavelength in trading bars.
func qFactor(wavelength float64) float64 {
	q := wavelength / qDivisor
	if q > qCap {
		return qCap
	}
	return q
}

type kernelKey struct {
	frequency float64
	length    int
}

// Kernels are read-mostly and safe to share across heatmap workers. Callers
// must treat returned slices as immutable.
var kernelCache = struct {
	sync.RWMutex
	kernels map[kernelKey][]complex128
}{kernels: make(map[kernelKey][]complex128)}

// morletWavelet builds an L2-normalized complex Morlet kernel for the given
// frequency in cycles per bar: a Gaussian envelope modulating a complex
// exponential carrier, sampled symmetrically around the kernel center.
func morletWavelet(frequency float64, length int) []complex128 {
	key := kernelKey{frequency: frequency, length: length}
	kernelCache.RLock()
	cached, ok := kernelCache.kernels[key]
	kernelCache.RUnlock()
	if ok {
		return cached
	}

	q := qFactor(1 / frequency)
	sigma := q / (2 * math.Pi * frequency)

	kernel := make([]complex128, length)
	center := float64(length) / 2.0
	var sumSq float64
	for i := 0; i < length; i++ {
		t := float64(i) - center
		envelope := math.Exp(-t * t / (2 * sigma * sigma))
		angle := 2 * math.Pi * frequency * t
		re := envelope * math.Cos(angle)
		im := envelope * math.Sin(angle)
		kernel[i] = complex(re, im)
		sumSq += re*re + im*im
	}
	if norm := math.Sqrt(sumSq); norm > 0 {
		scale := complex(1/norm, 0)
		for i := range kernel {
			kernel[i] *= scale
		}
	}

	kernelCache.Lock()
	kernelCache.kernels[key] = kernel
	kernelCache.Unlock()
	return kernel
}

// conjDot returns the inner product of a data segment with the conjugate
// kernel, the core operation of every power and coefficient estimate.
func conjDot(segment []float64, kernel []complex128) (re, im float64) {
	for i, w := range kernel {
		v := segment[i]
		re += v * real(w)
		im -= v * imag(w)
	}
	return re, im
}

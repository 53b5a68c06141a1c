package cycles

import "math"

// sineSeries returns base + amplitude*sin(2πt/wavelength) over n bars.
func sineSeries(n int, wavelength, amplitude, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amplitude*math.Sin(2*math.Pi*float64(i)/wavelength)
	}
	return out
}

// cosineTroughSeries returns a unit cycle with a trough exactly at troughIdx.
func cosineTroughSeries(n, wavelength, troughIdx int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = -math.Cos(2 * math.Pi * float64(i-troughIdx) / float64(wavelength))
	}
	return out
}

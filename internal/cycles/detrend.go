package cycles

import (
	"errors"
	"fmt"
	"math"
)

// Long-cycle suppression: subtract a centered moving average whose period is
// capped at longCycleCutoff bars and skipped entirely for short windows.
const (
	longCycleCutoff = 600
	minFilterPeriod = 50
)

var errSingularFit = errors.New("singular least-squares system")

// validateSeries rejects malformed input before it reaches the numerical
// core. Non-finite values are caller errors, not degeneracies to absorb.
func validateSeries(prices []float64) error {
	if len(prices) == 0 {
		return errors.New("empty price series")
	}
	for i, v := range prices {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite price at index %d", i)
		}
	}
	return nil
}

// preprocess conditions a price window for spectral estimation: shift
// positive if needed, natural log, optional long-cycle suppression, then a
// linear detrend. The input is never modified.
func preprocess(window []float64, suppressLongCycles bool) []float64 {
	data := make([]float64, len(window))
	copy(data, window)
	if len(data) == 0 {
		return data
	}

	minVal := data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
	}
	if minVal <= 0 {
		shift := -minVal + 1.0
		for i := range data {
			data[i] += shift
		}
	}
	for i := range data {
		data[i] = math.Log(data[i])
	}

	if suppressLongCycles {
		period := len(data) / 3
		if period > longCycleCutoff {
			period = longCycleCutoff
		}
		if period > minFilterPeriod {
			ma := centeredMovingAverage(data, period)
			for i := range data {
				data[i] -= ma[i]
			}
		}
	}

	return linearDetrend(data)
}

// centeredMovingAverage returns the edge-padded centered moving average of
// data. Centered rather than trailing so the filter is phase-preserving.
func centeredMovingAverage(data []float64, period int) []float64 {
	pad := period / 2
	padded := make([]float64, len(data)+2*pad)
	for i := 0; i < pad; i++ {
		padded[i] = data[0]
		padded[len(padded)-1-i] = data[len(data)-1]
	}
	copy(padded[pad:], data)

	out := make([]float64, len(data))
	var sum float64
	for i := 0; i < period; i++ {
		sum += padded[i]
	}
	out[0] = sum / float64(period)
	for i := 1; i < len(data); i++ {
		sum += padded[i+period-1] - padded[i-1]
		out[i] = sum / float64(period)
	}
	return out
}

// linearDetrend subtracts the least-squares line from data in place and
// returns the same slice for chaining.
func linearDetrend(data []float64) []float64 {
	trend, err := polyfitValues(data, 1)
	if err != nil {
		return data
	}
	for i := range data {
		data[i] -= trend[i]
	}
	return data
}

// polyfitValues fits a degree-deg polynomial to data by least squares and
// returns the fitted trend at every index. The abscissa is rescaled to
// [-1, 1] before forming the normal equations so cubic fits over long
// windows stay well conditioned; fitted values are unaffected by the
// rescale.
func polyfitValues(data []float64, deg int) ([]float64, error) {
	n := len(data)
	if n < deg+1 {
		return nil, fmt.Errorf("polyfit degree %d: need %d points, have %d", deg, deg+1, n)
	}

	u := make([]float64, n)
	if n > 1 {
		for i := range u {
			u[i] = 2*float64(i)/float64(n-1) - 1
		}
	}

	m := deg + 1
	powSums := make([]float64, 2*deg+1)
	rhs := make([]float64, m)
	for i, ui := range u {
		p := 1.0
		for k := 0; k <= 2*deg; k++ {
			powSums[k] += p
			if k < m {
				rhs[k] += data[i] * p
			}
			p *= ui
		}
	}
	normal := make([][]float64, m)
	for r := 0; r < m; r++ {
		normal[r] = make([]float64, m)
		for c := 0; c < m; c++ {
			normal[r][c] = powSums[r+c]
		}
	}

	coeffs, err := solveLinearSystem(normal, rhs)
	if err != nil {
		return nil, err
	}

	trend := make([]float64, n)
	for i, ui := range u {
		p := 1.0
		var v float64
		for k := 0; k < m; k++ {
			v += coeffs[k] * p
			p *= ui
		}
		trend[i] = v
	}
	return trend, nil
}

// solveLinearSystem solves a*x = b by Gaussian elimination with partial
// pivoting. Both arguments are consumed.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errSingularFit
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]
		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	return math.Sqrt(variance(values))
}

package cycles

import "sort"

// peakCriteria are the selection filters applied after local-maxima
// detection. Filters run in the order height, distance, prominence.
type peakCriteria struct {
	MinHeight     float64
	HasHeight     bool
	MinDistance   int
	MinProminence float64
	HasProminence bool
}

// findPeaks locates local maxima of x, reducing flat plateaus to their
// midpoint, then filters by minimum height, by inter-peak distance keeping
// the tallest contenders, and finally by prominence.
func findPeaks(x []float64, c peakCriteria) []int {
	peaks := localMaxima(x)

	if c.HasHeight {
		kept := peaks[:0]
		for _, p := range peaks {
			if x[p] >= c.MinHeight {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	if c.MinDistance > 1 && len(peaks) > 1 {
		keep := selectByDistance(x, peaks, c.MinDistance)
		kept := peaks[:0]
		for i, p := range peaks {
			if keep[i] {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	if c.HasProminence && len(peaks) > 0 {
		proms := peakProminences(x, peaks)
		kept := peaks[:0]
		for i, p := range peaks {
			if proms[i] >= c.MinProminence {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	return peaks
}

// findTroughs locates local minima by peak-finding the negated series.
// Prominence criteria are evaluated on the negated values.
func findTroughs(x []float64, c peakCriteria) []int {
	return findPeaks(negate(x), c)
}

// localMaxima returns the indices of strict local maxima. A run of equal
// values bounded by lower neighbors on both sides counts as one maximum at
// the plateau midpoint; plateaus touching either series end do not count.
func localMaxima(x []float64) []int {
	var mids []int
	n := len(x)
	for i := 1; i < n-1; i++ {
		if x[i-1] >= x[i] {
			continue
		}
		ahead := i + 1
		for ahead < n-1 && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			mids = append(mids, (i+ahead-1)/2)
			i = ahead
		}
	}
	return mids
}

// selectByDistance enforces a minimum index separation between peaks.
// Taller peaks claim their neighborhood first, so a short peak within
// distance of a taller one is dropped even if it came first in index order.
func selectByDistance(x []float64, peaks []int, distance int) []bool {
	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})
	for oi := len(order) - 1; oi >= 0; oi-- {
		j := order[oi]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}
	return keep
}

// peakProminences measures each peak against its lowest contour line,
// scanning outward to the nearest strictly higher sample on each side and
// taking the higher of the two interval minima as the base.
func peakProminences(x []float64, peaks []int) []float64 {
	out := make([]float64, len(peaks))
	for pi, p := range peaks {
		leftMin := x[p]
		for i := p; i >= 0 && x[i] <= x[p]; i-- {
			if x[i] < leftMin {
				leftMin = x[i]
			}
		}
		rightMin := x[p]
		for i := p; i < len(x) && x[i] <= x[p]; i++ {
			if x[i] < rightMin {
				rightMin = x[i]
			}
		}
		base := leftMin
		if rightMin > base {
			base = rightMin
		}
		out[pi] = x[p] - base
	}
	return out
}

package cycles

// Extrema filtering defaults. Separation keeps half-cycle noise from
// producing duplicate turning points; the exclusion fraction defines the
// trailing zone in which an extremum is still developing and must not be
// trusted as a phase anchor.
const (
	separationFraction       = 0.4
	DefaultExclusionFraction = 0.25
)

// FindExtrema locates peaks and troughs of signal separated by at least
// 0.4×wavelength bars and marks each as confirmed or still developing. An
// extremum is confirmed when it lies at least exclusionFraction×wavelength
// bars before the series end.
func FindExtrema(signal []float64, wavelength int, exclusionFraction float64) (peaks, troughs []Extremum) {
	if len(signal) == 0 || wavelength <= 0 {
		return nil, nil
	}
	if exclusionFraction <= 0 {
		exclusionFraction = DefaultExclusionFraction
	}
	crit := peakCriteria{MinDistance: int(float64(wavelength) * separationFraction)}
	exclusion := int(float64(wavelength) * exclusionFraction)

	neg := negate(signal)
	peaks = describeExtrema(signal, findPeaks(signal, crit), 0, len(signal), exclusion, false)
	troughs = describeExtrema(neg, findPeaks(neg, crit), 0, len(signal), exclusion, true)
	return peaks, troughs
}

// FindConfirmedExtrema is FindExtrema restricted to confirmed extrema: the
// returned lists never contain an index inside the trailing exclusion zone,
// for any input.
func FindConfirmedExtrema(signal []float64, wavelength int, exclusionFraction float64) (peaks, troughs []Extremum) {
	peaks, troughs = FindExtrema(signal, wavelength, exclusionFraction)
	return onlyConfirmed(peaks), onlyConfirmed(troughs)
}

// describeExtrema converts detector indices on a (possibly negated) surface
// into absolute extrema records carrying value, prominence and confirmation.
// offset maps surface-relative indices to absolute series indices.
func describeExtrema(surface []float64, indices []int, offset, seriesLen, exclusion int, negated bool) []Extremum {
	proms := peakProminences(surface, indices)
	out := make([]Extremum, 0, len(indices))
	for i, idx := range indices {
		v := surface[idx]
		if negated {
			v = -v
		}
		abs := offset + idx
		out = append(out, Extremum{
			Index:      abs,
			Value:      v,
			Prominence: proms[i],
			Confirmed:  seriesLen-1-abs >= exclusion,
		})
	}
	return out
}

func onlyConfirmed(list []Extremum) []Extremum {
	out := make([]Extremum, 0, len(list))
	for _, e := range list {
		if e.Confirmed {
			out = append(out, e)
		}
	}
	return out
}

func negate(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = -v
	}
	return out
}

package cycles

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Reconstruction defaults per the engine's configuration surface.
const (
	DefaultBandwidthPct   = 0.10
	MaxExtendFuture       = 700
	searchWindowCycles    = 3
	prominenceFactor      = 0.2
	bandFrequencies       = 5
	recentAmplitudeCycles = 2
)

func (o BandpassOptions) withDefaults() (BandpassOptions, error) {
	if o.Wavelength <= 0 {
		return o, fmt.Errorf("bandpass: wavelength must be positive, got %d", o.Wavelength)
	}
	if o.BandwidthPct <= 0 {
		o.BandwidthPct = DefaultBandwidthPct
	}
	if o.ExtendFuture < 0 {
		o.ExtendFuture = 0
	}
	if o.ExtendFuture > MaxExtendFuture {
		o.ExtendFuture = MaxExtendFuture
	}
	switch o.Method {
	case "":
		o.Method = MethodActualPricePeaks
	case MethodActualPricePeaks, MethodWaveletPhase:
	default:
		return o, fmt.Errorf("bandpass: unknown method %q", o.Method)
	}
	switch o.AlignTo {
	case "":
		o.AlignTo = AlignTrough
	case AlignTrough, AlignPeak, AlignAuto:
	default:
		return o, fmt.Errorf("bandpass: unknown alignment %q", o.AlignTo)
	}
	return o, nil
}

// Reconstruct builds the phase-aligned sine approximation of one cycle over
// prices plus a forward extension. The actual-price-peaks method anchors
// phase to a confirmed price extremum; with fewer than two confirmed
// extrema in the search window it degrades to the wavelet-phase method
// instead of failing. Method on the result reports what actually ran.
func Reconstruct(prices []float64, opts BandpassOptions) (*BandpassResult, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := validateSeries(prices); err != nil {
		return nil, fmt.Errorf("bandpass: %w", err)
	}
	if len(prices) < 2 {
		return nil, fmt.Errorf("bandpass: need at least 2 bars, have %d", len(prices))
	}

	if opts.Method == MethodActualPricePeaks {
		if res, ok := reconstructFromPriceExtrema(prices, opts); ok {
			return res, nil
		}
	}
	return reconstructFromWaveletPhase(prices, opts), nil
}

// reconstructFromPriceExtrema aligns the sine to an actual confirmed price
// turning point: cubic-detrend the raw prices, search the trailing three
// wavelengths for prominent extrema, drop any still inside the exclusion
// zone, and anchor phase to the surviving extremum preferred by AlignTo.
// Reports ok=false when fewer than two confirmed extrema exist.
func reconstructFromPriceExtrema(prices []float64, opts BandpassOptions) (*BandpassResult, bool) {
	n := len(prices)
	w := float64(opts.Wavelength)

	detrended := cubicDetrend(prices)

	searchWindow := int(w * searchWindowCycles)
	if searchWindow > n {
		searchWindow = n
	}
	window := detrended[n-searchWindow:]

	crit := peakCriteria{
		MinDistance:   int(w * separationFraction),
		HasProminence: true,
		MinProminence: stddev(window) * prominenceFactor,
	}
	exclusion := int(w * DefaultExclusionFraction)
	offset := n - searchWindow

	neg := negate(window)
	peaks := onlyConfirmed(describeExtrema(window, findPeaks(window, crit), offset, n, exclusion, false))
	troughs := onlyConfirmed(describeExtrema(neg, findPeaks(neg, crit), offset, n, exclusion, true))
	if len(peaks)+len(troughs) < 2 {
		return nil, false
	}

	anchor, anchorIsTrough := selectAnchor(peaks, troughs, opts.AlignTo)

	// sin reaches -1 at -π/2 and +1 at +π/2; solving ω·t+φ for the anchor
	// bar gives the offset directly.
	omega := 2 * math.Pi / w
	var phase float64
	if anchorIsTrough {
		phase = -math.Pi/2 - omega*float64(anchor)
	} else {
		phase = math.Pi/2 - omega*float64(anchor)
	}

	amplitude := fitAmplitude(preprocess(prices, false), omega, phase, recentAmplitudeCycles*opts.Wavelength)
	return assembleResult(n, opts, omega, phase, amplitude, MethodActualPricePeaks), true
}

// selectAnchor picks the phase anchor among confirmed extrema. Peak and
// trough preferences take the most prominent candidate of that type,
// falling back to the other type when none survived confirmation. Auto
// takes whichever confirmed extremum is most recent. At least one of the
// two lists must be non-empty.
func selectAnchor(peaks, troughs []Extremum, alignTo string) (index int, isTrough bool) {
	switch alignTo {
	case AlignPeak:
		if len(peaks) > 0 {
			return mostProminent(peaks).Index, false
		}
		return mostProminent(troughs).Index, true
	case AlignAuto:
		latestPeak, latestTrough := -1, -1
		if len(peaks) > 0 {
			latestPeak = peaks[len(peaks)-1].Index
		}
		if len(troughs) > 0 {
			latestTrough = troughs[len(troughs)-1].Index
		}
		if latestPeak > latestTrough {
			return latestPeak, false
		}
		return latestTrough, true
	default:
		if len(troughs) > 0 {
			return mostProminent(troughs).Index, true
		}
		return mostProminent(peaks).Index, false
	}
}

func mostProminent(list []Extremum) Extremum {
	best := list[0]
	for _, e := range list[1:] {
		if e.Prominence > best.Prominence {
			best = e
		}
	}
	return best
}

// reconstructFromWaveletPhase reads the instantaneous complex phase of the
// weighted band coefficients at the last data bar and synthesizes the full
// sine from it. Coefficient phase advances a full turn per wavelength, so
// only a single bar can anchor it; the angle leads the sine phase by pi/2
// (the coefficient is real positive at a cycle peak).
func reconstructFromWaveletPhase(prices []float64, opts BandpassOptions) *BandpassResult {
	n := len(prices)
	detrended := preprocess(prices, false)

	coeffs := bandCoefficients(detrended, float64(opts.Wavelength), opts.BandwidthPct)

	omega := 2 * math.Pi / float64(opts.Wavelength)
	last := coeffs[n-1]
	phase := math.Atan2(imag(last), real(last)) - omega*float64(n-1) + math.Pi/2

	amplitude := fitAmplitude(detrended, omega, phase, recentAmplitudeCycles*opts.Wavelength)

	return assembleResult(n, opts, omega, phase, amplitude, MethodWaveletPhase)
}

// fitAmplitude least-squares fits a*sin(omega*t+phase) against the trailing
// window of the detrended series, so the reported amplitude is in the same
// units as the detrended data rather than kernel scale. A degenerate fit
// returns the unit amplitude.
func fitAmplitude(detrended []float64, omega, phase float64, window int) float64 {
	n := len(detrended)
	if window <= 0 || window > n {
		window = n
	}
	var num, den float64
	for t := n - window; t < n; t++ {
		s := math.Sin(omega*float64(t) + phase)
		num += detrended[t] * s
		den += s * s
	}
	if den == 0 {
		return 1
	}
	return math.Abs(num / den)
}

// FilteredSignal returns the raw band-limited cycle estimate over the
// historical range: the real part of the weighted wavelet coefficients.
// Unlike the synthesized sine it carries the measured amplitude and period
// variation, which is what the health and rating analytics score.
func FilteredSignal(prices []float64, wavelength int, bandwidthPct float64) ([]float64, error) {
	if wavelength <= 0 {
		return nil, fmt.Errorf("filtered signal: wavelength must be positive, got %d", wavelength)
	}
	if err := validateSeries(prices); err != nil {
		return nil, fmt.Errorf("filtered signal: %w", err)
	}
	if bandwidthPct <= 0 {
		bandwidthPct = DefaultBandwidthPct
	}
	detrended := preprocess(prices, false)
	coeffs := bandCoefficients(detrended, float64(wavelength), bandwidthPct)
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = real(c)
	}
	return out, nil
}

// bandCoefficients computes complex wavelet coefficients for five
// frequencies spanning ±bandwidth/2 around the center wavelength and
// combines them weighted by mean coefficient amplitude, so the frequencies
// actually carrying the cycle dominate the estimate.
func bandCoefficients(data []float64, centerWavelength, bandwidthPct float64) []complex128 {
	n := len(data)
	bandwidth := centerWavelength * bandwidthPct
	minWl := centerWavelength - bandwidth/2
	maxWl := centerWavelength + bandwidth/2

	all := make([][]complex128, bandFrequencies)
	amps := make([]float64, bandFrequencies)
	for i := 0; i < bandFrequencies; i++ {
		wl := minWl + (maxWl-minWl)*float64(i)/float64(bandFrequencies-1)
		coeffs := fullCoverageCoefficients(data, wl)
		all[i] = coeffs
		var sum float64
		for _, c := range coeffs {
			sum += cmplx.Abs(c)
		}
		amps[i] = sum / float64(n)
	}

	var ampTotal float64
	for _, a := range amps {
		ampTotal += a
	}

	out := make([]complex128, n)
	for i := range all {
		weight := 1.0 / bandFrequencies
		if ampTotal > 0 {
			weight = amps[i] / ampTotal
		}
		scale := complex(weight, 0)
		for t, c := range all[i] {
			out[t] += scale * c
		}
	}
	return out
}

// fullCoverageCoefficients convolves the wavelet at every bar, truncating
// the kernel at the series edges so early and late bars are still covered.
func fullCoverageCoefficients(data []float64, wavelength float64) []complex128 {
	n := len(data)
	wlInt := int(wavelength)
	if wlInt < 1 {
		wlInt = 1
	}
	cycles := n / wlInt
	if cycles < minKernelCycles {
		cycles = minKernelCycles
	}
	if cycles > maxKernelCycles {
		cycles = maxKernelCycles
	}
	wlen := int(wavelength * float64(cycles))
	if wlen > n {
		wlen = n
	}
	if wlen < 1 {
		wlen = 1
	}
	kernel := morletWavelet(1/wavelength, wlen)

	coeffs := make([]complex128, n)
	for center := 0; center < n; center++ {
		start := center - wlen/2
		dataStart := start
		kernelStart := 0
		if dataStart < 0 {
			kernelStart = -dataStart
			dataStart = 0
		}
		dataEnd := start + wlen
		if dataEnd > n {
			dataEnd = n
		}
		if dataStart >= dataEnd {
			continue
		}
		var re, im float64
		for j := dataStart; j < dataEnd; j++ {
			w := kernel[kernelStart+j-dataStart]
			re += data[j] * real(w)
			im -= data[j] * imag(w)
		}
		coeffs[center] = complex(re, im)
	}
	return coeffs
}

// assembleResult synthesizes the sine for a resolved phase, generates the
// analytic extrema ladder anchored to the end of data, and filters the
// peak/trough lists down to confirmed historical turning points. The
// projected wave itself still spans the full extended range.
func assembleResult(n int, opts BandpassOptions, omega, phase, amplitude float64, method string) *BandpassResult {
	total := n + opts.ExtendFuture
	signal := make([]float64, total)
	for t := 0; t < total; t++ {
		signal[t] = math.Sin(omega*float64(t) + phase)
	}

	w := float64(opts.Wavelength)
	peaks := extremaLadder(n, total, omega, phase, math.Pi/2, w)
	troughs := extremaLadder(n, total, omega, phase, 3*math.Pi/2, w)

	exclusion := int(w * DefaultExclusionFraction)
	peaks = confirmIndices(peaks, n, exclusion)
	troughs = confirmIndices(troughs, n, exclusion)

	phaseEnd := omega*float64(n-1) + phase
	return &BandpassResult{
		Signal:           signal,
		Wavelength:       opts.Wavelength,
		Amplitude:        amplitude,
		Phase:            phase,
		PhaseDegrees:     positiveMod(phaseEnd*180/math.Pi, 360),
		Method:           method,
		Peaks:            peaks,
		Troughs:          troughs,
		HistoricalLength: n,
		ExtendFuture:     opts.ExtendFuture,
	}
}

// extremaLadder generates analytic turning-point indices for
// sin(omega*t+phase): find the target-phase crossing nearest the last data
// bar, then step one wavelength at a time backwards to the series start and
// forwards to the end of the projection. targetPhase is π/2 for peaks and
// 3π/2 for troughs.
func extremaLadder(n, total int, omega, phase, targetPhase, wavelength float64) []int {
	tEnd := float64(n - 1)
	phaseAtEnd := positiveMod(omega*tEnd+phase, 2*math.Pi)
	delta := positiveMod(targetPhase-phaseAtEnd, 2*math.Pi)
	if delta > math.Pi {
		delta -= 2 * math.Pi
	}
	tLast := tEnd + delta/omega

	var back []int
	for t := tLast; t >= 0; t -= wavelength {
		back = append(back, int(math.Round(t)))
	}
	indices := make([]int, 0, len(back)+4)
	for i := len(back) - 1; i >= 0; i-- {
		indices = append(indices, back[i])
	}
	for t := tLast + wavelength; t < float64(total); t += wavelength {
		indices = append(indices, int(math.Round(t)))
	}
	return indices
}

// confirmIndices keeps turning points that are confirmed historical: at
// least exclusion bars behind the last data bar and not projected.
func confirmIndices(indices []int, n, exclusion int) []int {
	limit := n - 1 - exclusion
	out := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx <= limit {
			out = append(out, idx)
		}
	}
	return out
}

// cubicDetrend removes a degree-3 trend from raw prices, falling back to
// mean subtraction when the fit degenerates.
func cubicDetrend(prices []float64) []float64 {
	out := make([]float64, len(prices))
	trend, err := polyfitValues(prices, 3)
	if err != nil {
		m := mean(prices)
		for i, v := range prices {
			out[i] = v - m
		}
		return out
	}
	for i, v := range prices {
		out[i] = v - trend[i]
	}
	return out
}

func positiveMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

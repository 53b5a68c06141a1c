package cycles

import (
	"fmt"
	"math"
	"sort"
)

// DefaultAlignmentTolerance is the maximum distance in bars between two
// cycle troughs that still counts as one alignment event.
const DefaultAlignmentTolerance = 10

// ComputeSynchronization examines how several reconstructed cycles relate at
// the current bar: which are rising, whose recent troughs bottomed together,
// and whether Hurst's composite entry rule holds. Keys of signals are
// wavelengths; only the historical part of each signal is considered. The
// entry check uses the shortest wavelength present as the trade cycle.
func ComputeSynchronization(signals map[int]*BandpassResult, tolerance int) *SynchronizationResult {
	if tolerance <= 0 {
		tolerance = DefaultAlignmentTolerance
	}

	wavelengths := make([]int, 0, len(signals))
	for w, res := range signals {
		if w > 0 && res != nil && res.HistoricalLength > 0 && len(res.Signal) > 0 {
			wavelengths = append(wavelengths, w)
		}
	}
	sort.Ints(wavelengths)

	phases := make([]CyclePhaseState, 0, len(wavelengths))
	for _, w := range wavelengths {
		res := signals[w]
		hist := res.Signal
		if res.HistoricalLength < len(hist) {
			hist = hist[:res.HistoricalLength]
		}
		phases = append(phases, phaseState(hist, w))
	}

	entry := hurstEntrySignal(phases)

	rising := 0
	for _, p := range phases {
		if p.Rising {
			rising++
		}
	}
	risingPct := 0.0
	if len(phases) > 0 {
		risingPct = float64(rising) / float64(len(phases)) * 100
	}
	risingPct = math.Round(risingPct*10) / 10

	var status, confidence string
	switch {
	case entry.Buy && (entry.Confidence == "High" || entry.Confidence == "Very High"):
		status, confidence = "Strong Synchronization", "High"
	case risingPct >= 60:
		status, confidence = "Partial Synchronization", "Moderate"
	case risingPct >= 40:
		status, confidence = "Weak Synchronization", "Low"
	default:
		status, confidence = "No Synchronization", "Very Low"
	}

	return &SynchronizationResult{
		Status:       status,
		Confidence:   confidence,
		RisingCycles: rising,
		TotalCycles:  len(phases),
		RisingPct:    risingPct,
		Alignments:   detectTroughAlignments(phases, tolerance),
		Phases:       phases,
		Tolerance:    tolerance,
		Entry:        entry,
	}
}

// phaseState locates the most recent trough and peak of one cycle signal and
// decides whether the cycle is rising right now. A trough more recent than
// the last peak means rising; a signal with only troughs is assumed rising,
// anything else falling.
func phaseState(signal []float64, wavelength int) CyclePhaseState {
	crit := peakCriteria{MinDistance: wavelength / 4}
	troughs := findTroughs(signal, crit)
	peaks := findPeaks(signal, crit)

	lastTrough, lastPeak := -1, -1
	if len(troughs) > 0 {
		lastTrough = troughs[len(troughs)-1]
	}
	if len(peaks) > 0 {
		lastPeak = peaks[len(peaks)-1]
	}

	rising := false
	switch {
	case lastTrough >= 0 && lastPeak >= 0:
		rising = lastTrough > lastPeak
	case lastTrough >= 0:
		rising = true
	}

	daysSince := -1
	if lastTrough >= 0 {
		daysSince = len(signal) - 1 - lastTrough
	}

	return CyclePhaseState{
		Wavelength:      wavelength,
		Rising:          rising,
		LastTroughIndex: lastTrough,
		LastPeakIndex:   lastPeak,
		DaysSinceTrough: daysSince,
	}
}

// detectTroughAlignments walks cycles ordered by last trough index and
// groups those whose troughs fall within tolerance bars of the earliest
// trough in the group. Groups of at least two cycles become events.
func detectTroughAlignments(phases []CyclePhaseState, tolerance int) []TroughAlignment {
	withTroughs := make([]CyclePhaseState, 0, len(phases))
	for _, p := range phases {
		if p.LastTroughIndex >= 0 {
			withTroughs = append(withTroughs, p)
		}
	}
	alignments := make([]TroughAlignment, 0)
	if len(withTroughs) == 0 {
		return alignments
	}
	sort.SliceStable(withTroughs, func(a, b int) bool {
		return withTroughs[a].LastTroughIndex < withTroughs[b].LastTroughIndex
	})

	group := []CyclePhaseState{withTroughs[0]}
	flush := func() {
		if len(group) >= 2 {
			alignments = append(alignments, alignmentEvent(group))
		}
	}
	for _, p := range withTroughs[1:] {
		if p.LastTroughIndex-group[0].LastTroughIndex <= tolerance {
			group = append(group, p)
			continue
		}
		flush()
		group = []CyclePhaseState{p}
	}
	flush()
	return alignments
}

func alignmentEvent(group []CyclePhaseState) TroughAlignment {
	var idxSum float64
	wavelengths := make([]int, len(group))
	for i, p := range group {
		idxSum += float64(p.LastTroughIndex)
		wavelengths[i] = p.Wavelength
	}
	sort.Ints(wavelengths)

	var confidence string
	switch {
	case len(group) >= 5:
		confidence = "Very High"
	case len(group) >= 3:
		confidence = "High"
	default:
		confidence = "Moderate"
	}

	return TroughAlignment{
		Index:       int(idxSum / float64(len(group))),
		NumCycles:   len(group),
		Wavelengths: wavelengths,
		Confidence:  confidence,
		DaysAgo:     group[0].DaysSinceTrough,
	}
}

// hurstEntrySignal evaluates the composite buy rule on phases sorted
// ascending by wavelength: the shortest cycle trades, and a buy requires it
// plus at least two of the longer cycles to all be rising.
func hurstEntrySignal(phases []CyclePhaseState) *EntrySignal {
	if len(phases) < 3 {
		return &EntrySignal{
			Reason:            "Need at least 3 cycles for Hurst rule",
			Confidence:        "N/A",
			RisingWavelengths: make([]int, 0),
		}
	}

	trade := phases[0]
	longer := phases[1:]

	risingWl := make([]int, 0, len(longer))
	for _, p := range longer {
		if p.Rising {
			risingWl = append(risingWl, p.Wavelength)
		}
	}

	total := len(risingWl)
	if trade.Rising {
		total++
	}

	var confidence string
	switch {
	case total >= 5:
		confidence = "Very High"
	case total >= 4:
		confidence = "High"
	case total >= 3:
		confidence = "Moderate"
	default:
		confidence = "Low"
	}

	direction := "falling"
	if trade.Rising {
		direction = "rising"
	}

	return &EntrySignal{
		Buy:                  trade.Rising && len(risingWl) >= 2,
		TradeCycleWavelength: trade.Wavelength,
		TradeCycleRising:     trade.Rising,
		LongerCyclesRising:   len(risingWl),
		TotalCyclesRising:    total,
		Confidence:           confidence,
		RisingWavelengths:    risingWl,
		Reason: fmt.Sprintf("Trade cycle (%dd) %s, %d longer cycles rising",
			trade.Wavelength, direction, len(risingWl)),
	}
}

package cycles

import "sort"

// Yield rating thresholds, in cumulative percent over the sample.
const (
	yieldExcellent = 100.0
	yieldGood      = 50.0
)

// DefaultRunningYieldStep is the sampling stride for RunningYield.
const DefaultRunningYieldStep = 20

type tradeEvent struct {
	index int
	buy   bool
}

// ComputeYield simulates idealized trading of one cycle: buy every signal
// trough, sell every signal peak, at most one open long position. Returns
// are simple additive percents, not compounded. Signals shorter than one
// wavelength, or with no extrema, yield a zero result rather than an error.
// Only the range covered by both signal and prices is evaluated.
func ComputeYield(signal, prices []float64, wavelength int) *YieldResult {
	if len(signal) > len(prices) {
		signal = signal[:len(prices)]
	}
	zero := &YieldResult{Trades: []TradeRecord{}}
	zero.Rating, zero.Description = yieldRating(0)
	if wavelength <= 0 || len(signal) < wavelength {
		return zero
	}

	crit := peakCriteria{MinDistance: wavelength / 4}
	peaks := findPeaks(signal, crit)
	troughs := findTroughs(signal, crit)
	if len(peaks) == 0 || len(troughs) == 0 {
		return zero
	}

	events := make([]tradeEvent, 0, len(peaks)+len(troughs))
	for _, idx := range troughs {
		events = append(events, tradeEvent{index: idx, buy: true})
	}
	for _, idx := range peaks {
		events = append(events, tradeEvent{index: idx, buy: false})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].index < events[j].index })

	var (
		trades     []TradeRecord
		cumulative float64
		entryIdx   = -1
		entryPrice float64
	)
	for _, ev := range events {
		switch {
		case ev.buy && entryIdx < 0:
			entryIdx = ev.index
			entryPrice = prices[ev.index]
		case !ev.buy && entryIdx >= 0:
			exitPrice := prices[ev.index]
			returnPct := (exitPrice - entryPrice) / entryPrice * 100
			cumulative += returnPct
			trades = append(trades, TradeRecord{
				EntryIndex: entryIdx,
				ExitIndex:  ev.index,
				EntryPrice: entryPrice,
				ExitPrice:  exitPrice,
				ReturnPct:  returnPct,
			})
			entryIdx = -1
		}
	}

	if trades == nil {
		trades = []TradeRecord{}
	}
	rating, description := yieldRating(cumulative)
	return &YieldResult{
		YieldPercent: cumulative,
		NumTrades:    len(trades),
		Trades:       trades,
		Rating:       rating,
		Description:  description,
	}
}

func yieldRating(yieldPercent float64) (rating, description string) {
	switch {
	case yieldPercent >= yieldExcellent:
		return "A/B", "Excellent - Strong tradeable cycle"
	case yieldPercent >= yieldGood:
		return "C", "Good - Moderate performance"
	default:
		return "D", "Weak - Low performance"
	}
}

// RunningYield samples cumulative yield over growing prefixes of the
// sample, starting after the first full wavelength and stepping by step
// bars. Used to chart how a cycle's tradeability evolved.
func RunningYield(signal, prices []float64, wavelength, step int) []RunningYieldPoint {
	if step <= 0 {
		step = DefaultRunningYieldStep
	}
	if len(signal) > len(prices) {
		signal = signal[:len(prices)]
	}
	points := make([]RunningYieldPoint, 0)
	if wavelength <= 0 {
		return points
	}
	for end := wavelength; end < len(signal); end += step {
		result := ComputeYield(signal[:end], prices[:end], wavelength)
		points = append(points, RunningYieldPoint{EndIndex: end, YieldPercent: result.YieldPercent})
	}
	return points
}

package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/irfndi/cyclescope-go/internal/models"
	"github.com/irfndi/cyclescope-go/internal/telemetry"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	// minAnalysisBars is the minimum history needed before any indicator
	// output is trustworthy (the slowest default is the 50-day SMA).
	minAnalysisBars = 50

	// analysisBars caps how much history the indicator pass loads. Daily
	// bars beyond this add warmup cost without changing current signals.
	analysisBars = 200
)

// TechnicalAnalysisService computes classic technical indicators on daily
// close series. It complements the spectral engine: cycles describe the
// rhythm, indicators describe the current posture.
type TechnicalAnalysisService struct {
	source        PriceSource
	logger        *logrus.Logger
	tracer        *telemetry.EngineTracer
	errorRecovery *ErrorRecoveryManager
}

// IndicatorResult represents the result of a technical indicator calculation
type IndicatorResult struct {
	Name      string            `json:"name"`
	Values    []decimal.Decimal `json:"values"`
	Signal    string            `json:"signal"` // "buy", "sell", "hold"
	Strength  decimal.Decimal   `json:"strength"`
	Detail    interface{}       `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// TechnicalAnalysisResult contains all calculated indicators for a symbol
type TechnicalAnalysisResult struct {
	Symbol        string             `json:"symbol"`
	Timeframe     string             `json:"timeframe"`
	LastPrice     decimal.Decimal    `json:"last_price"`
	Indicators    []*IndicatorResult `json:"indicators"`
	OverallSignal string             `json:"overall_signal"`
	Confidence    decimal.Decimal    `json:"confidence"`
	CalculatedAt  time.Time          `json:"calculated_at"`
}

// IndicatorConfig holds configuration for technical indicators. A zero
// period (or empty period list) disables that indicator family.
type IndicatorConfig struct {
	SMAPeriods []int `json:"sma_periods"`
	EMAPeriods []int `json:"ema_periods"`

	RSIPeriod int `json:"rsi_period"`

	MACDFast   int `json:"macd_fast"`
	MACDSlow   int `json:"macd_slow"`
	MACDSignal int `json:"macd_signal"`

	// Bollinger band width is fixed at two standard deviations.
	BBPeriod int `json:"bb_period"`
}

// NewTechnicalAnalysisService creates the indicator service. The error
// recovery manager is optional; without it price loads run unretried.
func NewTechnicalAnalysisService(source PriceSource, errorRecovery *ErrorRecoveryManager, logger *logrus.Logger) *TechnicalAnalysisService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TechnicalAnalysisService{
		source:        source,
		logger:        logger,
		tracer:        telemetry.NewEngineTracer(),
		errorRecovery: errorRecovery,
	}
}

// GetDefaultIndicatorConfig returns default configuration for indicators
func (tas *TechnicalAnalysisService) GetDefaultIndicatorConfig() *IndicatorConfig {
	return &IndicatorConfig{
		SMAPeriods: []int{10, 20, 50},
		EMAPeriods: []int{12, 26},
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBPeriod:   20,
	}
}

// Analyze runs the indicator pass for an API request and maps the results
// into the response DTOs.
func (tas *TechnicalAnalysisService) Analyze(ctx context.Context, req models.TechnicalAnalysisRequest) (*models.TechnicalAnalysisResponse, error) {
	result, err := tas.AnalyzeSymbol(ctx, req.Symbol, tas.configForRequest(req))
	if err != nil {
		return nil, err
	}
	return tas.buildResponse(result), nil
}

// AnalyzeSymbol performs a full technical analysis pass on a symbol
func (tas *TechnicalAnalysisService) AnalyzeSymbol(ctx context.Context, symbol string, config *IndicatorConfig) (*TechnicalAnalysisResult, error) {
	if config == nil {
		config = tas.GetDefaultIndicatorConfig()
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	ctx, span := tas.tracer.TraceIndicatorCalculation(ctx, "composite", symbol)
	defer span.End()

	tas.logger.WithField("symbol", symbol).Info("Starting technical analysis")

	series, err := tas.loadSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if series.Len() < minAnalysisBars {
		return nil, fmt.Errorf("insufficient price data: need at least %d points, got %d", minAnalysisBars, series.Len())
	}

	indicators := tas.calculateAllIndicators(series.Closes, config)
	overallSignal, confidence := tas.determineOverallSignal(indicators)

	tas.logger.WithFields(logrus.Fields{
		"symbol":     symbol,
		"indicators": len(indicators),
		"signal":     overallSignal,
	}).Info("Technical analysis completed")

	return &TechnicalAnalysisResult{
		Symbol:        symbol,
		Timeframe:     "1d",
		LastPrice:     decimal.NewFromFloat(series.Closes[series.Len()-1]),
		Indicators:    indicators,
		OverallSignal: overallSignal,
		Confidence:    confidence,
		CalculatedAt:  time.Now(),
	}, nil
}

// loadSeries fetches the trailing price history through the retry policy.
func (tas *TechnicalAnalysisService) loadSeries(ctx context.Context, symbol string) (*models.PriceSeries, error) {
	var series *models.PriceSeries
	load := func() error {
		var err error
		series, err = tas.source.GetPriceSeries(ctx, symbol, analysisBars)
		return err
	}

	var err error
	if tas.errorRecovery != nil {
		err = tas.errorRecovery.ExecuteWithRetry(ctx, "price_load", load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for %s: %w", symbol, err)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// configForRequest derives the indicator configuration from request
// parameters. An explicit period applies to every period-driven indicator;
// a non-empty indicator list disables everything not named.
func (tas *TechnicalAnalysisService) configForRequest(req models.TechnicalAnalysisRequest) *IndicatorConfig {
	config := tas.GetDefaultIndicatorConfig()

	if req.Period > 0 {
		config.SMAPeriods = []int{req.Period}
		config.EMAPeriods = []int{req.Period}
		config.RSIPeriod = req.Period
		config.BBPeriod = req.Period
	}

	if len(req.Indicators) > 0 {
		enabled := make(map[string]bool, len(req.Indicators))
		for _, name := range req.Indicators {
			enabled[strings.ToLower(strings.TrimSpace(name))] = true
		}
		if !enabled["sma"] {
			config.SMAPeriods = nil
		}
		if !enabled["ema"] {
			config.EMAPeriods = nil
		}
		if !enabled["rsi"] {
			config.RSIPeriod = 0
		}
		if !enabled["macd"] {
			config.MACDFast, config.MACDSlow, config.MACDSignal = 0, 0, 0
		}
		if !enabled["bb"] && !enabled["bollinger"] {
			config.BBPeriod = 0
		}
	}

	return config
}

// calculateAllIndicators computes all configured technical indicators
func (tas *TechnicalAnalysisService) calculateAllIndicators(closePrices []float64, config *IndicatorConfig) []*IndicatorResult {
	var indicators []*IndicatorResult

	for _, period := range config.SMAPeriods {
		if result := tas.calculateSMA(closePrices, period); result != nil {
			indicators = append(indicators, result)
		}
	}

	for _, period := range config.EMAPeriods {
		if result := tas.calculateEMA(closePrices, period); result != nil {
			indicators = append(indicators, result)
		}
	}

	if config.RSIPeriod > 0 {
		if result := tas.calculateRSI(closePrices, config.RSIPeriod); result != nil {
			indicators = append(indicators, result)
		}
	}

	if config.MACDFast > 0 && config.MACDSlow > 0 && config.MACDSignal > 0 {
		if result := tas.calculateMACD(closePrices, config.MACDFast, config.MACDSlow, config.MACDSignal); result != nil {
			indicators = append(indicators, result)
		}
	}

	if config.BBPeriod > 0 {
		if result := tas.calculateBollingerBands(closePrices, config.BBPeriod); result != nil {
			indicators = append(indicators, result)
		}
	}

	return indicators
}

// calculateSMA calculates Simple Moving Average
func (tas *TechnicalAnalysisService) calculateSMA(prices []float64, period int) *IndicatorResult {
	if len(prices) < period {
		return nil
	}

	smaIndicator := trend.NewSmaWithPeriod[float64](period)
	result := helper.ChanToSlice(smaIndicator.Compute(helper.SliceToChan(prices)))

	values := make([]decimal.Decimal, len(result))
	for i, val := range result {
		values[i] = decimal.NewFromFloat(val)
	}

	signal, strength := tas.analyzeSMASignal(prices, result, period)

	return &IndicatorResult{
		Name:     fmt.Sprintf("SMA_%d", period),
		Values:   values,
		Signal:   signal,
		Strength: strength,
		Detail: &models.MovingAverageData{
			Kind:      "sma",
			Period:    period,
			Value:     values[len(values)-1],
			Trend:     trendLabel(result),
			Timestamp: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// calculateEMA calculates Exponential Moving Average
func (tas *TechnicalAnalysisService) calculateEMA(prices []float64, period int) *IndicatorResult {
	if len(prices) < period {
		return nil
	}

	emaIndicator := trend.NewEmaWithPeriod[float64](period)
	result := helper.ChanToSlice(emaIndicator.Compute(helper.SliceToChan(prices)))

	values := make([]decimal.Decimal, len(result))
	for i, val := range result {
		values[i] = decimal.NewFromFloat(val)
	}

	signal, strength := tas.analyzeEMASignal(prices, result, period)

	return &IndicatorResult{
		Name:     fmt.Sprintf("EMA_%d", period),
		Values:   values,
		Signal:   signal,
		Strength: strength,
		Detail: &models.MovingAverageData{
			Kind:      "ema",
			Period:    period,
			Value:     values[len(values)-1],
			Trend:     trendLabel(result),
			Timestamp: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// calculateRSI calculates Relative Strength Index
func (tas *TechnicalAnalysisService) calculateRSI(prices []float64, period int) *IndicatorResult {
	if len(prices) < period+1 {
		return nil
	}

	rsiIndicator := momentum.NewRsiWithPeriod[float64](period)
	result := helper.ChanToSlice(rsiIndicator.Compute(helper.SliceToChan(prices)))
	if len(result) == 0 {
		return nil
	}

	values := make([]decimal.Decimal, len(result))
	for i, val := range result {
		values[i] = decimal.NewFromFloat(val)
	}

	signal, strength := tas.analyzeRSISignal(result)

	current := result[len(result)-1]
	zone := "neutral"
	if current < 30 {
		zone = "oversold"
	} else if current > 70 {
		zone = "overbought"
	}

	return &IndicatorResult{
		Name:     fmt.Sprintf("RSI_%d", period),
		Values:   values,
		Signal:   signal,
		Strength: strength,
		Detail: &models.RSIData{
			Period:    period,
			Value:     values[len(values)-1],
			Signal:    zone,
			Timestamp: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// calculateMACD calculates Moving Average Convergence Divergence
func (tas *TechnicalAnalysisService) calculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) *IndicatorResult {
	if len(prices) < slowPeriod+signalPeriod {
		return nil
	}

	macdIndicator := trend.NewMacdWithPeriod[float64](fastPeriod, slowPeriod, signalPeriod)
	macdLine, macdSignal := macdIndicator.Compute(helper.SliceToChan(prices))
	// The linked output channels are unbuffered and must be drained
	// concurrently or the indicator's internal senders deadlock.
	var macdSignalSlice []float64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		macdSignalSlice = helper.ChanToSlice(macdSignal)
	}()
	macdLineSlice := helper.ChanToSlice(macdLine)
	wg.Wait()
	if len(macdLineSlice) == 0 || len(macdLineSlice) != len(macdSignalSlice) {
		return nil
	}

	histogram := make([]float64, len(macdLineSlice))
	for i := range macdLineSlice {
		histogram[i] = macdLineSlice[i] - macdSignalSlice[i]
	}

	values := make([]decimal.Decimal, len(macdLineSlice))
	for i, val := range macdLineSlice {
		values[i] = decimal.NewFromFloat(val)
	}

	signal, strength := tas.analyzeMACDSignal(macdLineSlice)

	lastHistogram := histogram[len(histogram)-1]
	macdTrend := "neutral"
	if lastHistogram > 0 {
		macdTrend = "bullish"
	} else if lastHistogram < 0 {
		macdTrend = "bearish"
	}

	return &IndicatorResult{
		Name:     "MACD",
		Values:   values,
		Signal:   signal,
		Strength: strength,
		Detail: &models.MACDData{
			MACD:      decimal.NewFromFloat(macdLineSlice[len(macdLineSlice)-1]),
			Signal:    decimal.NewFromFloat(macdSignalSlice[len(macdSignalSlice)-1]),
			Histogram: decimal.NewFromFloat(lastHistogram),
			Trend:     macdTrend,
			Timestamp: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// calculateBollingerBands calculates Bollinger Bands
func (tas *TechnicalAnalysisService) calculateBollingerBands(prices []float64, period int) *IndicatorResult {
	if len(prices) < period {
		return nil
	}

	bbIndicator := volatility.NewBollingerBandsWithPeriod[float64](period)
	upperChan, middleChan, lowerChan := bbIndicator.Compute(helper.SliceToChan(prices))
	// The linked output channels are unbuffered and must be drained
	// concurrently or the indicator's internal senders deadlock.
	var middleBand, lowerBand []float64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		middleBand = helper.ChanToSlice(middleChan)
	}()
	go func() {
		defer wg.Done()
		lowerBand = helper.ChanToSlice(lowerChan)
	}()
	upperBand := helper.ChanToSlice(upperChan)
	wg.Wait()
	if len(middleBand) == 0 {
		return nil
	}

	values := make([]decimal.Decimal, len(middleBand))
	for i, val := range middleBand {
		values[i] = decimal.NewFromFloat(val)
	}

	signal, strength := tas.analyzeBollingerBandsSignal(prices, middleBand, upperBand, lowerBand, period)

	currentPrice := prices[len(prices)-1]
	position := "inside"
	if currentPrice > upperBand[len(upperBand)-1] {
		position = "above"
	} else if currentPrice < lowerBand[len(lowerBand)-1] {
		position = "below"
	}

	return &IndicatorResult{
		Name:     "BB",
		Values:   values,
		Signal:   signal,
		Strength: strength,
		Detail: &models.BollingerData{
			Upper:     decimal.NewFromFloat(upperBand[len(upperBand)-1]),
			Middle:    decimal.NewFromFloat(middleBand[len(middleBand)-1]),
			Lower:     decimal.NewFromFloat(lowerBand[len(lowerBand)-1]),
			Position:  position,
			Timestamp: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// Signal analysis functions

// analyzeSMASignal analyzes SMA signals with period-based adjustments
func (tas *TechnicalAnalysisService) analyzeSMASignal(prices, sma []float64, period int) (string, decimal.Decimal) {
	if len(prices) < 2 || len(sma) < 2 {
		return "hold", decimal.NewFromFloat(0.5)
	}

	currentPrice := prices[len(prices)-1]
	currentSMA := sma[len(sma)-1]
	prevPrice := prices[len(prices)-2]
	prevSMA := sma[len(sma)-2]

	distanceFromSMA := math.Abs(currentPrice-currentSMA) / currentSMA

	// Longer periods carry more weight
	periodMultiplier := math.Min(1.5, float64(period)/20.0)

	// Price crossing above SMA
	if currentPrice > currentSMA && prevPrice <= prevSMA {
		strength := math.Min(0.8, 0.6+(distanceFromSMA*periodMultiplier))
		return "buy", decimal.NewFromFloat(strength)
	}
	// Price crossing below SMA
	if currentPrice < currentSMA && prevPrice >= prevSMA {
		strength := math.Min(0.8, 0.6+(distanceFromSMA*periodMultiplier))
		return "sell", decimal.NewFromFloat(strength)
	}

	// Price above SMA (bullish)
	if currentPrice > currentSMA {
		strength := math.Min(0.7, 0.4+(distanceFromSMA*periodMultiplier))
		return "buy", decimal.NewFromFloat(strength)
	}
	// Price below SMA (bearish)
	if currentPrice < currentSMA {
		strength := math.Min(0.7, 0.4+(distanceFromSMA*periodMultiplier))
		return "sell", decimal.NewFromFloat(strength)
	}

	return "hold", decimal.NewFromFloat(0.5)
}

// analyzeEMASignal analyzes EMA signals with period-based adjustments
func (tas *TechnicalAnalysisService) analyzeEMASignal(prices, ema []float64, period int) (string, decimal.Decimal) {
	if len(prices) < 2 || len(ema) < 2 {
		return "hold", decimal.NewFromFloat(0.5)
	}

	currentPrice := prices[len(prices)-1]
	currentEMA := ema[len(ema)-1]
	prevPrice := prices[len(prices)-2]
	prevEMA := ema[len(ema)-2]

	distanceFromEMA := math.Abs(currentPrice-currentEMA) / currentEMA

	// EMA reacts faster than SMA, so crossings start from a higher base
	periodMultiplier := math.Min(1.3, float64(period)/15.0)

	if currentPrice > currentEMA && prevPrice <= prevEMA {
		strength := math.Min(0.85, 0.7+(distanceFromEMA*periodMultiplier))
		return "buy", decimal.NewFromFloat(strength)
	}
	if currentPrice < currentEMA && prevPrice >= prevEMA {
		strength := math.Min(0.85, 0.7+(distanceFromEMA*periodMultiplier))
		return "sell", decimal.NewFromFloat(strength)
	}
	if currentPrice > currentEMA {
		strength := math.Min(0.75, 0.5+(distanceFromEMA*periodMultiplier))
		return "buy", decimal.NewFromFloat(strength)
	}
	if currentPrice < currentEMA {
		strength := math.Min(0.75, 0.5+(distanceFromEMA*periodMultiplier))
		return "sell", decimal.NewFromFloat(strength)
	}

	return "hold", decimal.NewFromFloat(0.5)
}

func (tas *TechnicalAnalysisService) analyzeRSISignal(rsi []float64) (string, decimal.Decimal) {
	if len(rsi) == 0 {
		return "hold", decimal.NewFromFloat(0.5)
	}

	currentRSI := rsi[len(rsi)-1]

	if currentRSI < 30 {
		return "buy", decimal.NewFromFloat(0.8) // Oversold
	}
	if currentRSI > 70 {
		return "sell", decimal.NewFromFloat(0.8) // Overbought
	}
	if currentRSI < 40 {
		return "buy", decimal.NewFromFloat(0.6)
	}
	if currentRSI > 60 {
		return "sell", decimal.NewFromFloat(0.6)
	}

	return "hold", decimal.NewFromFloat(0.5)
}

func (tas *TechnicalAnalysisService) analyzeMACDSignal(macd []float64) (string, decimal.Decimal) {
	if len(macd) < 2 {
		return "hold", decimal.NewFromFloat(0.5)
	}

	current := macd[len(macd)-1]
	previous := macd[len(macd)-2]

	// MACD crossing above zero
	if current > 0 && previous <= 0 {
		return "buy", decimal.NewFromFloat(0.8)
	}
	// MACD crossing below zero
	if current < 0 && previous >= 0 {
		return "sell", decimal.NewFromFloat(0.8)
	}
	if current > 0 {
		return "buy", decimal.NewFromFloat(0.6)
	}
	if current < 0 {
		return "sell", decimal.NewFromFloat(0.6)
	}

	return "hold", decimal.NewFromFloat(0.5)
}

// analyzeBollingerBandsSignal analyzes Bollinger Bands signals with period-based adjustments
func (tas *TechnicalAnalysisService) analyzeBollingerBandsSignal(prices, middleBand, upperBand, lowerBand []float64, period int) (string, decimal.Decimal) {
	if len(prices) == 0 || len(middleBand) == 0 || len(upperBand) == 0 || len(lowerBand) == 0 {
		return "hold", decimal.NewFromFloat(0.5)
	}

	currentPrice := prices[len(prices)-1]
	currentMiddle := middleBand[len(middleBand)-1]
	currentUpper := upperBand[len(upperBand)-1]
	currentLower := lowerBand[len(lowerBand)-1]

	bandWidth := currentUpper - currentLower
	if bandWidth <= 0 {
		return "hold", decimal.NewFromFloat(0.5)
	}
	distanceFromMiddle := math.Abs(currentPrice - currentMiddle)
	positionInBand := (currentPrice - currentLower) / bandWidth

	periodMultiplier := math.Min(1.4, float64(period)/25.0)

	// Touching the lower band, mean-reversion buy
	if currentPrice <= currentLower*1.02 {
		strength := math.Min(0.8, 0.6+(periodMultiplier*0.2))
		return "buy", decimal.NewFromFloat(strength)
	}

	// Touching the upper band, mean-reversion sell
	if currentPrice >= currentUpper*0.98 {
		strength := math.Min(0.8, 0.6+(periodMultiplier*0.2))
		return "sell", decimal.NewFromFloat(strength)
	}

	// Hugging the middle band carries no information
	if distanceFromMiddle < bandWidth*0.1 {
		return "hold", decimal.NewFromFloat(0.5)
	}

	// Between bands the position reads as momentum
	if positionInBand < 0.3 {
		strength := math.Min(0.6, 0.4+(periodMultiplier*0.15))
		return "sell", decimal.NewFromFloat(strength)
	} else if positionInBand > 0.7 {
		strength := math.Min(0.6, 0.4+(periodMultiplier*0.15))
		return "buy", decimal.NewFromFloat(strength)
	}

	return "hold", decimal.NewFromFloat(0.5)
}

// determineOverallSignal analyzes all indicators to determine overall signal
func (tas *TechnicalAnalysisService) determineOverallSignal(indicators []*IndicatorResult) (string, decimal.Decimal) {
	if len(indicators) == 0 {
		return "hold", decimal.NewFromFloat(0.5)
	}

	buyScore := decimal.Zero
	sellScore := decimal.Zero
	totalWeight := decimal.Zero

	for _, indicator := range indicators {
		weight := indicator.Strength
		totalWeight = totalWeight.Add(weight)

		switch indicator.Signal {
		case "buy":
			buyScore = buyScore.Add(weight)
		case "sell":
			sellScore = sellScore.Add(weight)
		}
	}

	if totalWeight.IsZero() {
		return "hold", decimal.NewFromFloat(0.5)
	}

	buyRatio := buyScore.Div(totalWeight)
	sellRatio := sellScore.Div(totalWeight)

	if buyRatio.GreaterThan(decimal.NewFromFloat(0.6)) {
		return "buy", buyRatio
	}
	if sellRatio.GreaterThan(decimal.NewFromFloat(0.6)) {
		return "sell", sellRatio
	}

	return "hold", decimal.NewFromFloat(0.5)
}

// buildResponse maps service results into the API response DTOs.
func (tas *TechnicalAnalysisService) buildResponse(result *TechnicalAnalysisResult) *models.TechnicalAnalysisResponse {
	data := models.IndicatorData{
		Symbol:     result.Symbol,
		Indicators: make(map[string]interface{}, len(result.Indicators)),
		Timestamp:  result.CalculatedAt,
	}

	signals := make([]models.Signal, 0, len(result.Indicators))
	for _, indicator := range result.Indicators {
		if indicator.Detail != nil {
			data.Indicators[strings.ToLower(indicator.Name)] = indicator.Detail
		}
		signals = append(signals, models.Signal{
			Type:       indicator.Signal,
			Strength:   strengthLabel(indicator.Signal, indicator.Strength),
			Price:      result.LastPrice,
			Indicator:  indicator.Name,
			Confidence: indicator.Strength.Mul(decimal.NewFromInt(100)),
			Timestamp:  indicator.Timestamp,
		})
	}

	return &models.TechnicalAnalysisResponse{
		Data:      data,
		Signals:   signals,
		Timestamp: result.CalculatedAt,
	}
}

// strengthLabel buckets a numeric strength for the response DTO.
func strengthLabel(signal string, strength decimal.Decimal) string {
	if signal == "hold" {
		return "neutral"
	}
	if strength.GreaterThanOrEqual(decimal.NewFromFloat(0.7)) {
		return "strong"
	}
	return "weak"
}

// trendLabel classifies the recent slope of an indicator series.
func trendLabel(values []float64) string {
	if len(values) < 2 {
		return "sideways"
	}
	lookback := 5
	if lookback > len(values)-1 {
		lookback = len(values) - 1
	}
	current := values[len(values)-1]
	past := values[len(values)-1-lookback]
	if past == 0 {
		return "sideways"
	}
	change := (current - past) / math.Abs(past)
	switch {
	case change > 0.001:
		return "up"
	case change < -0.001:
		return "down"
	default:
		return "sideways"
	}
}

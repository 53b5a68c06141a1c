package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cyclescope-go/internal/models"
)

// flakySource fails a fixed number of loads before delegating.
type flakySource struct {
	inner        *stubSource
	failuresLeft int
}

func (f *flakySource) GetPriceSeries(ctx context.Context, symbol string, limit int) (*models.PriceSeries, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("transient source failure")
	}
	return f.inner.GetPriceSeries(ctx, symbol, limit)
}

func (f *flakySource) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	return f.inner.ListSymbols(ctx)
}

func setupIndicatorService() *TechnicalAnalysisService {
	source := newStubSource(makeTestSeries("SPX", 300, 50))
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewTechnicalAnalysisService(source, nil, logger)
}

func TestNewTechnicalAnalysisService(t *testing.T) {
	source := newStubSource()
	service := NewTechnicalAnalysisService(source, nil, nil)

	require.NotNil(t, service)
	assert.NotNil(t, service.logger)
	assert.NotNil(t, service.tracer)
	assert.Nil(t, service.errorRecovery)
}

func TestGetDefaultIndicatorConfig(t *testing.T) {
	service := setupIndicatorService()

	config := service.GetDefaultIndicatorConfig()

	require.NotNil(t, config)
	assert.Equal(t, []int{10, 20, 50}, config.SMAPeriods)
	assert.Equal(t, []int{12, 26}, config.EMAPeriods)
	assert.Equal(t, 14, config.RSIPeriod)
	assert.Equal(t, 12, config.MACDFast)
	assert.Equal(t, 26, config.MACDSlow)
	assert.Equal(t, 9, config.MACDSignal)
	assert.Equal(t, 20, config.BBPeriod)
}

func TestCalculateSMA(t *testing.T) {
	service := setupIndicatorService()

	tests := []struct {
		name     string
		prices   []float64
		period   int
		expected bool // whether result should be non-nil
	}{
		{
			name:     "Valid SMA calculation",
			prices:   []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			period:   5,
			expected: true,
		},
		{
			name:     "Insufficient data",
			prices:   []float64{10, 11, 12},
			period:   5,
			expected: false,
		},
		{
			name:     "Empty prices",
			prices:   []float64{},
			period:   5,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.calculateSMA(tt.prices, tt.period)

			if !tt.expected {
				assert.Nil(t, result)
				return
			}

			require.NotNil(t, result)
			assert.Equal(t, fmt.Sprintf("SMA_%d", tt.period), result.Name)
			assert.NotEmpty(t, result.Values)
			assert.Contains(t, []string{"buy", "sell", "hold"}, result.Signal)

			detail, ok := result.Detail.(*models.MovingAverageData)
			require.True(t, ok)
			assert.Equal(t, "sma", detail.Kind)
			assert.Equal(t, tt.period, detail.Period)
		})
	}
}

func TestCalculateEMA(t *testing.T) {
	service := setupIndicatorService()

	prices := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	period := 5

	result := service.calculateEMA(prices, period)

	require.NotNil(t, result)
	assert.Equal(t, fmt.Sprintf("EMA_%d", period), result.Name)
	assert.NotEmpty(t, result.Values)
	assert.Contains(t, []string{"buy", "sell", "hold"}, result.Signal)

	detail, ok := result.Detail.(*models.MovingAverageData)
	require.True(t, ok)
	assert.Equal(t, "ema", detail.Kind)
	assert.Equal(t, "up", detail.Trend)
}

func TestCalculateRSI(t *testing.T) {
	service := setupIndicatorService()

	tests := []struct {
		name     string
		prices   []float64
		period   int
		expected bool
	}{
		{
			name:     "Valid RSI calculation",
			prices:   []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.85, 47.25, 47.92, 46.23, 44.18, 46.57, 46.61, 45.41},
			period:   14,
			expected: true,
		},
		{
			name:     "Insufficient data",
			prices:   []float64{44, 44.34, 44.09},
			period:   14,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.calculateRSI(tt.prices, tt.period)

			if !tt.expected {
				assert.Nil(t, result)
				return
			}

			require.NotNil(t, result)
			assert.Equal(t, fmt.Sprintf("RSI_%d", tt.period), result.Name)
			assert.NotEmpty(t, result.Values)

			detail, ok := result.Detail.(*models.RSIData)
			require.True(t, ok)
			assert.Equal(t, tt.period, detail.Period)
			assert.Contains(t, []string{"oversold", "overbought", "neutral"}, detail.Signal)
		})
	}
}

func TestCalculateMACD(t *testing.T) {
	service := setupIndicatorService()

	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5 // Trending upward
	}

	result := service.calculateMACD(prices, 12, 26, 9)

	require.NotNil(t, result)
	assert.Equal(t, "MACD", result.Name)
	assert.NotEmpty(t, result.Values)
	assert.Equal(t, "buy", result.Signal)

	detail, ok := result.Detail.(*models.MACDData)
	require.True(t, ok)
	assert.Equal(t, "bullish", detail.Trend)
	diff := detail.MACD.Sub(detail.Signal).InexactFloat64()
	assert.InDelta(t, detail.Histogram.InexactFloat64(), diff, 1e-9)
}

func TestCalculateBollingerBands(t *testing.T) {
	service := setupIndicatorService()

	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i%10) // Oscillating pattern
	}

	result := service.calculateBollingerBands(prices, 20)

	require.NotNil(t, result)
	assert.Equal(t, "BB", result.Name)
	assert.NotEmpty(t, result.Values)
	assert.Contains(t, []string{"buy", "sell", "hold"}, result.Signal)

	detail, ok := result.Detail.(*models.BollingerData)
	require.True(t, ok)
	assert.True(t, detail.Upper.GreaterThan(detail.Middle))
	assert.True(t, detail.Middle.GreaterThan(detail.Lower))
	assert.Contains(t, []string{"above", "inside", "below"}, detail.Position)
}

// Signal analysis tests

func TestAnalyzeSMASignal(t *testing.T) {
	service := setupIndicatorService()

	tests := []struct {
		name           string
		prices         []float64
		sma            []float64
		expectedSignal string
	}{
		{
			name:           "Price crossing above SMA",
			prices:         []float64{99, 101},
			sma:            []float64{100, 100},
			expectedSignal: "buy",
		},
		{
			name:           "Price crossing below SMA",
			prices:         []float64{101, 99},
			sma:            []float64{100, 100},
			expectedSignal: "sell",
		},
		{
			name:           "Price above SMA",
			prices:         []float64{101, 102},
			sma:            []float64{100, 100},
			expectedSignal: "buy",
		},
		{
			name:           "Price below SMA",
			prices:         []float64{99, 98},
			sma:            []float64{100, 100},
			expectedSignal: "sell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, strength := service.analyzeSMASignal(tt.prices, tt.sma, 10)
			assert.Equal(t, tt.expectedSignal, signal)
			assert.True(t, strength.GreaterThan(decimal.Zero))
		})
	}
}

func TestAnalyzeEMASignal(t *testing.T) {
	service := setupIndicatorService()

	// Crossing signals start from the 0.7 base
	signal, strength := service.analyzeEMASignal([]float64{99, 101}, []float64{100, 100}, 12)
	assert.Equal(t, "buy", signal)
	assert.True(t, strength.GreaterThanOrEqual(decimal.NewFromFloat(0.7)))

	signal, strength = service.analyzeEMASignal([]float64{101, 99}, []float64{100, 100}, 12)
	assert.Equal(t, "sell", signal)
	assert.True(t, strength.GreaterThanOrEqual(decimal.NewFromFloat(0.7)))
}

func TestAnalyzeRSISignal(t *testing.T) {
	service := setupIndicatorService()

	tests := []struct {
		name             string
		rsi              []float64
		expectedSignal   string
		expectedStrength float64
	}{
		{"Oversold condition", []float64{25}, "buy", 0.8},
		{"Overbought condition", []float64{75}, "sell", 0.8},
		{"Weak buy zone", []float64{35}, "buy", 0.6},
		{"Weak sell zone", []float64{65}, "sell", 0.6},
		{"Neutral condition", []float64{50}, "hold", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, strength := service.analyzeRSISignal(tt.rsi)
			assert.Equal(t, tt.expectedSignal, signal)
			assert.InDelta(t, tt.expectedStrength, strength.InexactFloat64(), 1e-9)
		})
	}
}

func TestAnalyzeMACDSignal(t *testing.T) {
	service := setupIndicatorService()

	tests := []struct {
		name           string
		macd           []float64
		expectedSignal string
	}{
		{
			name:           "MACD crossing above zero",
			macd:           []float64{-0.1, 0.1},
			expectedSignal: "buy",
		},
		{
			name:           "MACD crossing below zero",
			macd:           []float64{0.1, -0.1},
			expectedSignal: "sell",
		},
		{
			name:           "MACD above zero",
			macd:           []float64{0.1, 0.2},
			expectedSignal: "buy",
		},
		{
			name:           "MACD below zero",
			macd:           []float64{-0.1, -0.2},
			expectedSignal: "sell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, strength := service.analyzeMACDSignal(tt.macd)
			assert.Equal(t, tt.expectedSignal, signal)
			assert.True(t, strength.GreaterThan(decimal.Zero))
		})
	}
}

func TestAnalyzeBollingerBandsSignal(t *testing.T) {
	service := setupIndicatorService()

	middle := []float64{100}
	upper := []float64{110}
	lower := []float64{90}

	signal, _ := service.analyzeBollingerBandsSignal([]float64{90.5}, middle, upper, lower, 20)
	assert.Equal(t, "buy", signal)

	signal, _ = service.analyzeBollingerBandsSignal([]float64{109.5}, middle, upper, lower, 20)
	assert.Equal(t, "sell", signal)

	signal, strength := service.analyzeBollingerBandsSignal([]float64{100.5}, middle, upper, lower, 20)
	assert.Equal(t, "hold", signal)
	assert.InDelta(t, 0.5, strength.InexactFloat64(), 1e-9)
}

func TestDetermineOverallSignal(t *testing.T) {
	service := setupIndicatorService()

	tests := []struct {
		name           string
		indicators     []*IndicatorResult
		expectedSignal string
	}{
		{
			name: "Strong buy signals",
			indicators: []*IndicatorResult{
				{Signal: "buy", Strength: decimal.NewFromFloat(0.8)},
				{Signal: "buy", Strength: decimal.NewFromFloat(0.7)},
				{Signal: "hold", Strength: decimal.NewFromFloat(0.5)},
			},
			expectedSignal: "buy",
		},
		{
			name: "Strong sell signals",
			indicators: []*IndicatorResult{
				{Signal: "sell", Strength: decimal.NewFromFloat(0.8)},
				{Signal: "sell", Strength: decimal.NewFromFloat(0.7)},
				{Signal: "hold", Strength: decimal.NewFromFloat(0.5)},
			},
			expectedSignal: "sell",
		},
		{
			name: "Mixed signals",
			indicators: []*IndicatorResult{
				{Signal: "buy", Strength: decimal.NewFromFloat(0.6)},
				{Signal: "sell", Strength: decimal.NewFromFloat(0.6)},
				{Signal: "hold", Strength: decimal.NewFromFloat(0.5)},
			},
			expectedSignal: "hold",
		},
		{
			name:           "No indicators",
			indicators:     []*IndicatorResult{},
			expectedSignal: "hold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, confidence := service.determineOverallSignal(tt.indicators)
			assert.Equal(t, tt.expectedSignal, signal)
			assert.True(t, confidence.GreaterThanOrEqual(decimal.Zero))
			assert.True(t, confidence.LessThanOrEqual(decimal.NewFromFloat(1.0)))
		})
	}
}

func TestConfigForRequest(t *testing.T) {
	service := setupIndicatorService()

	t.Run("Defaults", func(t *testing.T) {
		config := service.configForRequest(models.TechnicalAnalysisRequest{Symbol: "SPX"})
		assert.Equal(t, []int{10, 20, 50}, config.SMAPeriods)
		assert.Equal(t, 14, config.RSIPeriod)
	})

	t.Run("Explicit period", func(t *testing.T) {
		config := service.configForRequest(models.TechnicalAnalysisRequest{Symbol: "SPX", Period: 21})
		assert.Equal(t, []int{21}, config.SMAPeriods)
		assert.Equal(t, []int{21}, config.EMAPeriods)
		assert.Equal(t, 21, config.RSIPeriod)
		assert.Equal(t, 21, config.BBPeriod)
		assert.Equal(t, 12, config.MACDFast, "MACD periods are not overridden")
	})

	t.Run("Indicator filter", func(t *testing.T) {
		config := service.configForRequest(models.TechnicalAnalysisRequest{
			Symbol:     "SPX",
			Indicators: []string{"rsi", "macd"},
		})
		assert.Nil(t, config.SMAPeriods)
		assert.Nil(t, config.EMAPeriods)
		assert.Equal(t, 14, config.RSIPeriod)
		assert.Equal(t, 12, config.MACDFast)
		assert.Zero(t, config.BBPeriod)
	})

	t.Run("Bollinger alias", func(t *testing.T) {
		config := service.configForRequest(models.TechnicalAnalysisRequest{
			Symbol:     "SPX",
			Indicators: []string{"bollinger"},
		})
		assert.Equal(t, 20, config.BBPeriod)
		assert.Zero(t, config.RSIPeriod)
	})
}

func TestAnalyzeSymbol(t *testing.T) {
	service := setupIndicatorService()

	result, err := service.AnalyzeSymbol(context.Background(), "SPX", nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "SPX", result.Symbol)
	assert.Equal(t, "1d", result.Timeframe)
	assert.Contains(t, []string{"buy", "sell", "hold"}, result.OverallSignal)
	assert.False(t, result.CalculatedAt.IsZero())
	assert.True(t, result.LastPrice.GreaterThan(decimal.Zero))

	names := make(map[string]bool, len(result.Indicators))
	for _, indicator := range result.Indicators {
		names[indicator.Name] = true
	}
	for _, want := range []string{"SMA_10", "SMA_20", "SMA_50", "EMA_12", "EMA_26", "RSI_14", "MACD", "BB"} {
		assert.True(t, names[want], "missing indicator %s", want)
	}
}

func TestAnalyzeSymbol_InsufficientData(t *testing.T) {
	source := newStubSource(makeTestSeries("THIN", 40, 20))
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	service := NewTechnicalAnalysisService(source, nil, logger)

	_, err := service.AnalyzeSymbol(context.Background(), "THIN", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient price data")
}

func TestAnalyzeSymbol_UnknownSymbol(t *testing.T) {
	service := setupIndicatorService()

	_, err := service.AnalyzeSymbol(context.Background(), "NOPE", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load price history")
}

func TestAnalyzeSymbol_RetriesTransientFailures(t *testing.T) {
	source := &flakySource{
		inner:        newStubSource(makeTestSeries("SPX", 300, 50)),
		failuresLeft: 2,
	}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	erm := NewErrorRecoveryManager(logger)
	erm.RegisterRetryPolicy("price_load", &RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	})

	service := NewTechnicalAnalysisService(source, erm, logger)

	result, err := service.AnalyzeSymbol(context.Background(), "SPX", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Indicators)
	assert.Zero(t, source.failuresLeft)
}

func TestAnalyze_Response(t *testing.T) {
	service := setupIndicatorService()

	response, err := service.Analyze(context.Background(), models.TechnicalAnalysisRequest{Symbol: "SPX"})
	require.NoError(t, err)
	require.NotNil(t, response)

	assert.Equal(t, "SPX", response.Data.Symbol)
	assert.Len(t, response.Signals, 8)
	assert.Contains(t, response.Data.Indicators, "sma_20")
	assert.Contains(t, response.Data.Indicators, "rsi_14")
	assert.Contains(t, response.Data.Indicators, "macd")
	assert.Contains(t, response.Data.Indicators, "bb")

	for _, signal := range response.Signals {
		assert.Contains(t, []string{"buy", "sell", "hold"}, signal.Type)
		assert.Contains(t, []string{"strong", "weak", "neutral"}, signal.Strength)
		assert.True(t, signal.Confidence.GreaterThanOrEqual(decimal.Zero))
		assert.True(t, signal.Confidence.LessThanOrEqual(decimal.NewFromInt(100)))
		assert.True(t, signal.Price.GreaterThan(decimal.Zero))
	}
}

func TestAnalyze_IndicatorFilter(t *testing.T) {
	service := setupIndicatorService()

	response, err := service.Analyze(context.Background(), models.TechnicalAnalysisRequest{
		Symbol:     "SPX",
		Indicators: []string{"rsi"},
	})
	require.NoError(t, err)

	assert.Len(t, response.Signals, 1)
	assert.Equal(t, "RSI_14", response.Signals[0].Indicator)
	assert.Contains(t, response.Data.Indicators, "rsi_14")
	assert.NotContains(t, response.Data.Indicators, "macd")
}

// Helper tests

func TestTrendLabel(t *testing.T) {
	assert.Equal(t, "up", trendLabel([]float64{100, 101, 102, 103, 104, 105}))
	assert.Equal(t, "down", trendLabel([]float64{105, 104, 103, 102, 101, 100}))
	assert.Equal(t, "sideways", trendLabel([]float64{100, 100, 100, 100, 100, 100}))
	assert.Equal(t, "sideways", trendLabel([]float64{100}))
}

func TestStrengthLabel(t *testing.T) {
	assert.Equal(t, "neutral", strengthLabel("hold", decimal.NewFromFloat(0.5)))
	assert.Equal(t, "strong", strengthLabel("buy", decimal.NewFromFloat(0.8)))
	assert.Equal(t, "weak", strengthLabel("sell", decimal.NewFromFloat(0.6)))
}

// Error handling tests

func TestCalculateIndicatorsWithInsufficientData(t *testing.T) {
	service := setupIndicatorService()

	prices := []float64{100, 101}

	assert.Nil(t, service.calculateSMA(prices, 10))
	assert.Nil(t, service.calculateEMA(prices, 10))
	assert.Nil(t, service.calculateRSI(prices, 14))
	assert.Nil(t, service.calculateMACD(prices, 12, 26, 9))
	assert.Nil(t, service.calculateBollingerBands(prices, 20))
}

func TestAnalyzeSignalsWithEmptyData(t *testing.T) {
	service := setupIndicatorService()

	signal, strength := service.analyzeSMASignal([]float64{}, []float64{}, 10)
	assert.Equal(t, "hold", signal)
	assert.Equal(t, decimal.NewFromFloat(0.5), strength)

	signal, strength = service.analyzeRSISignal([]float64{})
	assert.Equal(t, "hold", signal)
	assert.Equal(t, decimal.NewFromFloat(0.5), strength)

	signal, strength = service.analyzeMACDSignal([]float64{})
	assert.Equal(t, "hold", signal)
	assert.Equal(t, decimal.NewFromFloat(0.5), strength)
}

// Benchmarks

func BenchmarkCalculateSMA(b *testing.B) {
	service := setupIndicatorService()
	prices := make([]float64, 1000)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.1
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		service.calculateSMA(prices, 20)
	}
}

func BenchmarkCalculateRSI(b *testing.B) {
	service := setupIndicatorService()
	prices := make([]float64, 1000)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.1
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		service.calculateRSI(prices, 14)
	}
}

func BenchmarkCalculateAllIndicators(b *testing.B) {
	service := setupIndicatorService()
	series := makeTestSeries("SPX", 200, 50)
	config := service.GetDefaultIndicatorConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		service.calculateAllIndicators(series.Closes, config)
	}
}

package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/irfndi/cyclescope-go/internal/api"
	"github.com/irfndi/cyclescope-go/internal/cache"
	"github.com/irfndi/cyclescope-go/internal/config"
	"github.com/irfndi/cyclescope-go/internal/marketdata"
	"github.com/irfndi/cyclescope-go/internal/middleware"
	"github.com/irfndi/cyclescope-go/internal/models"
	"github.com/irfndi/cyclescope-go/internal/services"
	"github.com/irfndi/cyclescope-go/internal/testutil"
	"github.com/irfndi/cyclescope-go/test/testmocks"
)

const (
	fixtureBars       = 1200
	fixtureWavelength = 150
	testAdminKey      = "integration-admin-key"
)

// writeHistoryCSV drops a synthetic trending sine history into dir the way
// the shared price tooling writes them: date,close rows with a header.
func writeHistoryCSV(t *testing.T, dir, slug string, bars, wavelength int) {
	t.Helper()

	f, err := os.Create(filepath.Join(dir, slug+"_history.csv"))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"Date", "Close"}))

	start := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < bars; i++ {
		price := 100.0 * math.Exp(0.0002*float64(i)+0.05*math.Sin(2*math.Pi*float64(i)/float64(wavelength)))
		row := []string{
			start.AddDate(0, 0, i).Format("2006-01-02"),
			strconv.FormatFloat(price, 'f', 4, 64),
		}
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		WindowSize:      800,
		MinWavelength:   100,
		MaxWavelength:   250,
		CoarseGrid:      true,
		Workers:         2,
		MinPeakHeight:   0.15,
		MinPeakDistance: 5,
		BandwidthPct:    0.10,
	}
}

// newTestServer assembles the real request path: CSV provider, miniredis
// cache, analysis and indicator services, admin auth, routes.
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writeHistoryCSV(t, dir, "spy", fixtureBars, fixtureWavelength)

	provider, err := marketdata.NewProvider(config.MarketDataConfig{DataDir: dir})
	require.NoError(t, err)

	analysisCache := cache.NewRedisAnalysisCache(testutil.NewMiniRedisClient(t), "cycletest", time.Minute)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	analysisService := services.NewAnalysisService(provider, analysisCache, testEngineConfig(), nil, logger)
	indicatorService := services.NewTechnicalAnalysisService(provider, nil, logger)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(t, err)
	adminAuth := middleware.NewAdminAuth(config.SecurityConfig{
		AdminKeyHash: string(hash),
		JWTSecret:    "integration-test-secret",
		JWTExpiry:    "1h",
	})

	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, analysisService, indicatorService, adminAuth, provider,
		nil, nil, nil, nil, nil, "test", logger)
	return router
}

func doRequest(router *gin.Engine, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postJSON(t *testing.T, router *gin.Engine, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestListSymbols(t *testing.T) {
	router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/v1/symbols", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SymbolsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "SPY", resp.Symbols[0].Symbol)
	assert.Equal(t, fixtureBars, resp.Symbols[0].Bars)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/v1/cycles/analyze?symbol=spy", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.CycleAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SPY", resp.Symbol)
	assert.NotEmpty(t, resp.RunID)

	// Heatmap is normalized by a single global maximum: every cell in
	// [0, 1] with at least one cell at the maximum.
	require.NotEmpty(t, resp.Heatmap.Data)
	globalMax := 0.0
	for _, row := range resp.Heatmap.Data {
		require.Len(t, row, len(resp.Heatmap.Wavelengths))
		for _, cell := range row {
			assert.GreaterOrEqual(t, cell, 0.0)
			assert.LessOrEqual(t, cell, 1.0+1e-9)
			if cell > globalMax {
				globalMax = cell
			}
		}
	}
	assert.InDelta(t, 1.0, globalMax, 1e-6, "global heatmap maximum should normalize to one")

	// The fixture has one clean cycle; the dominant detected wavelength
	// must land near it.
	require.NotEmpty(t, resp.PeakCycles)
	dominant := resp.PeakCycles[0].WavelengthDays
	assert.InDelta(t, fixtureWavelength, dominant, 0.2*fixtureWavelength,
		"dominant cycle %d should be near the synthetic period %d", dominant, fixtureWavelength)
	assert.Greater(t, resp.PeakCycles[0].CalendarDays, resp.PeakCycles[0].WavelengthDays)

	require.NotNil(t, resp.Bandpass)
	assert.Len(t, resp.PriceData.Dates, len(resp.PriceData.Prices))
	assert.Len(t, resp.PowerSpectrum.Amplitudes, len(resp.PowerSpectrum.Wavelengths))
}

func TestAnalyzeCachedResponseIsStable(t *testing.T) {
	router := newTestServer(t)

	first := doRequest(router, http.MethodGet, "/api/v1/cycles/analyze?symbol=spy", nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := doRequest(router, http.MethodGet, "/api/v1/cycles/analyze?symbol=spy", nil)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String(),
		"second request should be served byte-identical from the cache")
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/v1/cycles/analyze", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/cycles/analyze?symbol=unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBandpassReconstruction(t *testing.T) {
	router := newTestServer(t)

	target := fmt.Sprintf("/api/v1/cycles/bandpass?symbol=spy&selected_wavelength=%d&extend_future=100", fixtureWavelength)
	w := doRequest(router, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.BandpassResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	bp := resp.Bandpass
	assert.Equal(t, fixtureWavelength, bp.Wavelength)
	assert.Equal(t, 100, bp.FutureDays)
	assert.Equal(t, bp.HistoricalLength+bp.FutureDays, len(bp.ScaledValues))

	// Confirmed extrema exclude the trailing quarter wavelength.
	cutoff := bp.HistoricalLength - fixtureWavelength/4
	require.NotEmpty(t, bp.Peaks)
	require.NotEmpty(t, bp.Troughs)
	for _, idx := range append(append([]int{}, bp.Peaks...), bp.Troughs...) {
		assert.Less(t, idx, cutoff, "extremum %d inside the unconfirmed zone", idx)
		assert.GreaterOrEqual(t, idx, 0)
	}

	// Peak-to-peak spacing of the reconstruction tracks the requested
	// wavelength within five percent.
	for i := 1; i < len(bp.Peaks); i++ {
		spacing := float64(bp.Peaks[i] - bp.Peaks[i-1])
		assert.InDelta(t, fixtureWavelength, spacing, 0.05*fixtureWavelength)
	}
}

func TestBandpassValidation(t *testing.T) {
	router := newTestServer(t)

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"missing wavelength", "/api/v1/cycles/bandpass?symbol=spy", http.StatusBadRequest},
		{"bad method", "/api/v1/cycles/bandpass?symbol=spy&selected_wavelength=150&method=fourier", http.StatusBadRequest},
		{"bad alignment", "/api/v1/cycles/bandpass?symbol=spy&selected_wavelength=150&align_to=sideways", http.StatusBadRequest},
		{"unknown symbol", "/api/v1/cycles/bandpass?symbol=qqq&selected_wavelength=150", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestEvaluateCycle(t *testing.T) {
	router := newTestServer(t)

	target := fmt.Sprintf("/api/v1/cycles/evaluate?symbol=spy&wavelength=%d", fixtureWavelength)
	w := doRequest(router, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var eval services.CycleEvaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eval))
	assert.Equal(t, fixtureWavelength, eval.Wavelength)

	require.NotNil(t, eval.Health)
	assert.GreaterOrEqual(t, eval.Health.Score, 0)
	assert.LessOrEqual(t, eval.Health.Score, 100)

	// A clean synthetic sine trades profitably under trough-buy/peak-sell.
	require.NotNil(t, eval.Yield)
	assert.Greater(t, eval.Yield.NumTrades, 0)
	assert.Greater(t, eval.Yield.YieldPercent, 0.0)

	require.NotNil(t, eval.Bartels)
	require.NotNil(t, eval.Quality)
	require.NotNil(t, eval.Rating)
	require.NotNil(t, eval.Synchronization)
}

func TestIndicatorsEndpoint(t *testing.T) {
	router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/v1/analysis/indicators?symbol=spy", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.TechnicalAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Timestamp.IsZero())
}

func TestAdminFlow(t *testing.T) {
	router := newTestServer(t)

	// Wrong key is rejected.
	w := postJSON(t, router, "/api/v1/admin/token", models.AdminTokenRequest{APIKey: "wrong-key"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Right key yields a session token.
	w = postJSON(t, router, "/api/v1/admin/token", models.AdminTokenRequest{APIKey: testAdminKey})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tokenResp models.AdminTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokenResp))
	require.NotEmpty(t, tokenResp.Token)
	assert.True(t, tokenResp.ExpiresAt.After(time.Now()))

	// Admin routes refuse anonymous calls and accept the token.
	w = doRequest(router, http.MethodDelete, "/api/v1/admin/cache", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	authed := map[string]string{"Authorization": "Bearer " + tokenResp.Token}
	w = doRequest(router, http.MethodDelete, "/api/v1/admin/cache", authed)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/v1/admin/catalog/refresh", authed)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/v1/admin/status", authed)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLegacyDashboardRoutes(t *testing.T) {
	router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/analyze?symbol=spy", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	target := fmt.Sprintf("/api/bandpass?symbol=spy&selected_wavelength=%d", fixtureWavelength)
	w = doRequest(router, http.MethodGet, target, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrentAnalysisRequests(t *testing.T) {
	router := newTestServer(t)

	// Warm the cache once so the parallel burst mixes cached and fresh paths.
	warm := doRequest(router, http.MethodGet, "/api/v1/cycles/analyze?symbol=spy", nil)
	require.Equal(t, http.StatusOK, warm.Code)

	targets := []string{
		"/api/v1/cycles/analyze?symbol=spy",
		fmt.Sprintf("/api/v1/cycles/bandpass?symbol=spy&selected_wavelength=%d", fixtureWavelength),
		"/api/v1/symbols",
		"/health",
	}

	var wg sync.WaitGroup
	codes := make(chan int, len(targets)*4)
	for i := 0; i < 4; i++ {
		for _, target := range targets {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				codes <- doRequest(router, http.MethodGet, target, nil).Code
			}(target)
		}
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestUnavailablePriceSource(t *testing.T) {
	gin.SetMode(gin.TestMode)

	source := &testmocks.MockPriceSource{}
	source.On("GetPriceSeries", mock.Anything, "SPY", mock.AnythingOfType("int")).
		Return(nil, fmt.Errorf("price store unavailable"))
	source.On("GetPriceSeries", mock.Anything, "GONE", mock.AnythingOfType("int")).
		Return(nil, models.ErrSymbolNotFound)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	analysisService := services.NewAnalysisService(source, nil, testEngineConfig(), nil, logger)
	indicatorService := services.NewTechnicalAnalysisService(source, nil, logger)
	adminAuth := middleware.NewAdminAuth(config.SecurityConfig{})

	router := gin.New()
	api.SetupRoutes(router, analysisService, indicatorService, adminAuth, nil,
		nil, nil, nil, nil, nil, "test", logger)

	w := doRequest(router, http.MethodGet, "/api/v1/cycles/analyze?symbol=spy", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/cycles/analyze?symbol=gone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	source.AssertExpectations(t)
}

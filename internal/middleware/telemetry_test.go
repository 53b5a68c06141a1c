package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cyclescope-go/internal/telemetry"
)

func initTestTelemetry(t *testing.T) {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = false
	require.NoError(t, telemetry.InitTelemetry(*cfg))
}

func TestTelemetryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	initTestTelemetry(t)

	t.Run("traced request passes through", func(t *testing.T) {
		router := gin.New()
		router.Use(TelemetryMiddleware())
		router.GET("/api/v1/symbols", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"count": 0})
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/symbols", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "count")
	})

	t.Run("health endpoint skipped", func(t *testing.T) {
		router := gin.New()
		router.Use(TelemetryMiddleware())
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("error responses flow through", func(t *testing.T) {
		router := gin.New()
		router.Use(TelemetryMiddleware())
		router.GET("/boom", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
		})

		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHealthCheckTelemetryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	initTestTelemetry(t)

	router := gin.New()
	router.Use(HealthCheckTelemetryMiddleware())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestRecordErrorAndSpanAttributes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	initTestTelemetry(t)

	router := gin.New()
	router.Use(TelemetryMiddleware())
	router.GET("/attr", func(c *gin.Context) {
		AddSpanAttribute(c, "symbol", "SPX")
		AddSpanAttribute(c, "window_size", 600)
		AddSpanAttribute(c, "global_max", 1.25)
		AddSpanAttribute(c, "cached", false)
		AddSpanAttribute(c, "bars", int64(4000))
		AddSpanAttribute(c, "other", struct{ A int }{1})
		RecordError(c, errors.New("synthetic"), "handler failure")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/attr", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Attribute and error recording must never interfere with the response.
	assert.Equal(t, http.StatusOK, w.Code)
}

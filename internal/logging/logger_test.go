package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	otellog "go.opentelemetry.io/otel/log"
)

// testLogger implements the Logger interface for testing
type testLogger struct {
	logger *slog.Logger
}

func (t *testLogger) WithService(serviceName string) *slog.Logger {
	return t.logger.With("service", serviceName)
}

func (t *testLogger) WithComponent(componentName string) *slog.Logger {
	return t.logger.With("component", componentName)
}

func (t *testLogger) WithOperation(operationName string) *slog.Logger {
	return t.logger.With("operation", operationName)
}

func (t *testLogger) WithRequestID(requestID string) *slog.Logger {
	return t.logger.With("request_id", requestID)
}

func (t *testLogger) WithRunID(runID string) *slog.Logger {
	return t.logger.With("run_id", runID)
}

func (t *testLogger) WithSymbol(symbol string) *slog.Logger {
	return t.logger.With("symbol", symbol)
}

func (t *testLogger) WithWavelength(wavelength int) *slog.Logger {
	return t.logger.With("wavelength", wavelength)
}

func (t *testLogger) WithError(err error) *slog.Logger {
	return t.logger.With("error", err)
}

func (t *testLogger) WithMetrics(metrics map[string]interface{}) *slog.Logger {
	attrs := make([]any, 0, len(metrics)*2)
	for k, v := range metrics {
		attrs = append(attrs, k, v)
	}
	return t.logger.With(attrs...)
}

func (t *testLogger) LogStartup(serviceName string, version string, port int) {
	t.logger.Info("Service starting",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

func (t *testLogger) LogShutdown(serviceName string, reason string) {
	t.logger.Info("Service shutting down",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

func (t *testLogger) LogPerformanceMetrics(serviceName string, metrics map[string]interface{}) {
	attrs := make([]any, 0, len(metrics)*2+2)
	attrs = append(attrs, "service", serviceName, "event", "performance_metrics")
	for k, v := range metrics {
		attrs = append(attrs, k, v)
	}
	t.logger.Info("Performance metrics", attrs...)
}

func (t *testLogger) LogResourceStats(serviceName string, stats map[string]interface{}) {
	attrs := make([]any, 0, len(stats)*2+2)
	attrs = append(attrs, "service", serviceName, "event", "resource_stats")
	for k, v := range stats {
		attrs = append(attrs, k, v)
	}
	t.logger.Info("Resource statistics", attrs...)
}

func (t *testLogger) LogCacheOperation(operation string, key string, hit bool, duration int64) {
	t.logger.Info("Cache operation",
		"operation", operation,
		"key", key,
		"hit", hit,
		"duration_ms", duration,
		"event", "cache_operation",
	)
}

func (t *testLogger) LogDatabaseOperation(operation string, table string, duration int64, rowsAffected int64) {
	t.logger.Info("Database operation",
		"operation", operation,
		"table", table,
		"duration_ms", duration,
		"rows_affected", rowsAffected,
		"event", "database_operation",
	)
}

func (t *testLogger) LogAPIRequest(method string, path string, statusCode int, duration int64) {
	t.logger.Info("API request",
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration_ms", duration,
		"event", "api_request",
	)
}

func (t *testLogger) LogAnalysisRun(symbol string, runID string, windowSize int, duration int64, cacheHit bool) {
	t.logger.Info("Analysis run",
		"symbol", symbol,
		"run_id", runID,
		"window_size", windowSize,
		"duration_ms", duration,
		"cache_hit", cacheHit,
		"event", "analysis_run",
	)
}

func (t *testLogger) Logger() *slog.Logger {
	return t.logger
}

// setupTestLogger creates a logger for testing
func setupTestLogger(level string) (*StandardLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: getSlogLevel(level),
	})
	logger := slog.New(handler)

	return &StandardLogger{
		logger: &testLogger{logger: logger},
	}, &buf
}

func TestNewStandardLogger_Basic(t *testing.T) {
	logger := NewStandardLogger("info", "development")

	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger())
}

func TestNewStandardLogger_LogLevels(t *testing.T) {
	tests := []struct {
		levelStr string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // Should default to info
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			level := getSlogLevel(tt.levelStr)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestStandardLogger_WithService(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithService("analysis").Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "service=analysis")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_WithComponent(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithComponent("database").Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "component=database")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_WithOperation(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithOperation("build_heatmap").Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "operation=build_heatmap")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_WithRequestID(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithRequestID("req-123456").Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "request_id=req-123456")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_WithRunID(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithRunID("run-789").Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "run_id=run-789")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_WithSymbol(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithSymbol("SPX").Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "symbol=SPX")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_WithWavelength(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithWavelength(250).Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "wavelength=250")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_WithError(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.WithError(assert.AnError).Error("test error message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "error=")
	assert.Contains(t, logOutput, "test error message")
}

func TestStandardLogger_WithMetrics(t *testing.T) {
	logger, buf := setupTestLogger("info")

	metrics := map[string]interface{}{
		"duration_ms": 150,
		"status_code": 200,
		"bytes_sent":  1024,
	}

	logger.WithMetrics(metrics).Info("test message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "duration_ms=150")
	assert.Contains(t, logOutput, "status_code=200")
	assert.Contains(t, logOutput, "bytes_sent=1024")
	assert.Contains(t, logOutput, "test message")
}

func TestStandardLogger_LogStartup(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.LogStartup("cyclescope-api", "1.0.0", 8080)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "service=cyclescope-api")
	assert.Contains(t, logOutput, "version=1.0.0")
	assert.Contains(t, logOutput, "port=8080")
	assert.Contains(t, logOutput, "event=startup")
	assert.Contains(t, logOutput, "Service starting")
}

func TestStandardLogger_LogShutdown(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.LogShutdown("cyclescope-api", "graceful")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "service=cyclescope-api")
	assert.Contains(t, logOutput, "reason=graceful")
	assert.Contains(t, logOutput, "event=shutdown")
	assert.Contains(t, logOutput, "Service shutting down")
}

func TestStandardLogger_LogPerformanceMetrics(t *testing.T) {
	logger, buf := setupTestLogger("debug")

	metrics := map[string]interface{}{
		"cpu_usage":    75.5,
		"memory_usage": 1024,
	}

	logger.LogPerformanceMetrics("monitor", metrics)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "service=monitor")
	assert.Contains(t, logOutput, "event=performance_metrics")
	assert.Contains(t, logOutput, "Performance metrics")
}

func TestStandardLogger_LogResourceStats(t *testing.T) {
	logger, buf := setupTestLogger("info")

	stats := map[string]interface{}{
		"goroutines": 100,
		"heap_size":  2048,
	}

	logger.LogResourceStats("monitor", stats)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "service=monitor")
	assert.Contains(t, logOutput, "event=resource_stats")
	assert.Contains(t, logOutput, "Resource statistics")
}

func TestStandardLogger_LogCacheOperation(t *testing.T) {
	logger, buf := setupTestLogger("debug")

	logger.LogCacheOperation("get", "cyclescope:analysis:spx:4000", true, 15)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "event=cache_operation")
	assert.Contains(t, logOutput, "operation=get")
	assert.Contains(t, logOutput, "key=cyclescope:analysis:spx:4000")
	assert.Contains(t, logOutput, "hit=true")
	assert.Contains(t, logOutput, "duration_ms=15")
	assert.Contains(t, logOutput, "Cache operation")
}

func TestStandardLogger_LogDatabaseOperation(t *testing.T) {
	logger, buf := setupTestLogger("debug")

	logger.LogDatabaseOperation("select", "price_bars", 250, 4000)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "event=database_operation")
	assert.Contains(t, logOutput, "operation=select")
	assert.Contains(t, logOutput, "table=price_bars")
	assert.Contains(t, logOutput, "duration_ms=250")
	assert.Contains(t, logOutput, "rows_affected=4000")
	assert.Contains(t, logOutput, "Database operation")
}

func TestStandardLogger_LogAPIRequest(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.LogAPIRequest("GET", "/api/v1/symbols", 200, 150)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "event=api_request")
	assert.Contains(t, logOutput, "method=GET")
	assert.Contains(t, logOutput, "path=/api/v1/symbols")
	assert.Contains(t, logOutput, "status_code=200")
	assert.Contains(t, logOutput, "duration_ms=150")
	assert.Contains(t, logOutput, "API request")
}

func TestStandardLogger_LogAnalysisRun(t *testing.T) {
	logger, buf := setupTestLogger("info")

	logger.LogAnalysisRun("SPX", "run-42", 4000, 820, false)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "event=analysis_run")
	assert.Contains(t, logOutput, "symbol=SPX")
	assert.Contains(t, logOutput, "run_id=run-42")
	assert.Contains(t, logOutput, "window_size=4000")
	assert.Contains(t, logOutput, "duration_ms=820")
	assert.Contains(t, logOutput, "cache_hit=false")
	assert.Contains(t, logOutput, "Analysis run")
}

// Test OTLP Logger functionality
func TestNewOTLPLogger_Disabled(t *testing.T) {
	config := OTLPConfig{
		Enabled:     false,
		Endpoint:    "localhost:4318",
		ServiceName: "test-service",
	}

	logger, err := NewOTLPLogger(config)
	assert.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger())
}

func TestNewOTLPLogger_Enabled(t *testing.T) {
	config := OTLPConfig{
		Enabled:        true,
		Endpoint:       "localhost:4318",
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		LogLevel:       "info",
	}

	// The exporter is created lazily, so construction succeeds even without
	// a collector listening.
	logger, err := NewOTLPLogger(config)
	if err != nil {
		assert.ErrorContains(t, err, "failed to create OTLP log exporter")
	} else {
		assert.NotNil(t, logger)
		assert.NotNil(t, logger.Logger())
	}
}

func TestOTLPLogger_Shutdown(t *testing.T) {
	config := OTLPConfig{
		Enabled:     false,
		ServiceName: "test-service",
	}

	logger, err := NewOTLPLogger(config)
	assert.NoError(t, err)
	assert.NotNil(t, logger)

	ctx := context.Background()
	err = logger.Shutdown(ctx)
	assert.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = logger.Shutdown(shutdownCtx)
	assert.NoError(t, err)
}

func TestConvertSlogLevelToSeverity(t *testing.T) {
	assert.Equal(t, otellog.SeverityDebug, convertSlogLevelToSeverity(slog.LevelDebug))
	assert.Equal(t, otellog.SeverityInfo, convertSlogLevelToSeverity(slog.LevelInfo))
	assert.Equal(t, otellog.SeverityWarn, convertSlogLevelToSeverity(slog.LevelWarn))
	assert.Equal(t, otellog.SeverityError, convertSlogLevelToSeverity(slog.LevelError))
	assert.Equal(t, otellog.SeverityInfo, convertSlogLevelToSeverity(slog.Level(10))) // Default case
}

func TestNewStandardOTLPLogger(t *testing.T) {
	config := OTLPConfig{
		Enabled:     false,
		ServiceName: "test-service",
		LogLevel:    "info",
	}

	logger := NewStandardOTLPLogger(config)
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger())

	// Exercise the wrapper methods against the disabled provider.
	assert.NotNil(t, logger.WithService("svc"))
	assert.NotNil(t, logger.WithComponent("cmp"))
	assert.NotNil(t, logger.WithOperation("op"))
	assert.NotNil(t, logger.WithRequestID("req"))
	assert.NotNil(t, logger.WithRunID("run"))
	assert.NotNil(t, logger.WithSymbol("SPX"))
	assert.NotNil(t, logger.WithWavelength(120))
	assert.NotNil(t, logger.WithError(fmt.Errorf("test error")))
	assert.NotNil(t, logger.WithMetrics(map[string]interface{}{"k": "v"}))
}

func TestStandardLogger_SetLogger(t *testing.T) {
	logger := NewStandardLogger("info", "development")
	assert.NotNil(t, logger)

	mockLogger := &testLogger{logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))}

	logger.SetLogger(mockLogger)

	resultLogger := logger.WithService("test-service")
	assert.NotNil(t, resultLogger)
}

func TestParseLogrusLevel(t *testing.T) {
	tests := []struct {
		levelStr string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"info", logrus.InfoLevel},
		{"INFO", logrus.InfoLevel},    // case insensitive
		{"DEBUG", logrus.DebugLevel},  // case insensitive
		{"invalid", logrus.InfoLevel}, // default to info
		{"", logrus.InfoLevel},        // empty string defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			result := ParseLogrusLevel(tt.levelStr)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFallbackLogger_CoversInterface(t *testing.T) {
	logger := &fallbackLogger{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}

	var iface Logger = logger
	assert.NotNil(t, iface.WithService("svc"))
	assert.NotNil(t, iface.WithSymbol("SPX"))
	assert.NotNil(t, iface.WithWavelength(250))
	assert.NotNil(t, iface.WithError(fmt.Errorf("boom")))
	assert.NotNil(t, iface.Logger())
}

package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "cyclescope-api"
	ServiceVersion = "1.0.0"
)

// TelemetryConfig holds configuration for OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
	LogLevel       string
	ExportStdout   bool
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:        true,
		OTLPEndpoint:   "http://localhost:4318",
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    "development",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
		LogLevel:       "info",
	}
}

// Provider holds the telemetry provider
type Provider struct {
	Shutdown func(context.Context) error
	logger   *slog.Logger
}

var (
	globalProvider *Provider
	globalLogger   *slog.Logger
)

// normalizeOTLPEndpoint splits a user-supplied OTLP base URL into the
// host:port and URL path the trace exporter expects. The /v1/traces suffix
// is appended when the base URL does not already carry it.
func normalizeOTLPEndpoint(endpoint string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", false, "", fmt.Errorf("invalid OTLPEndpoint %q: %w", endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", false, "", fmt.Errorf("invalid OTLPEndpoint %q: expected http(s)://host[:port][/base]", endpoint)
	}

	urlPath = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(urlPath, "/v1/traces") {
		urlPath += "/v1/traces"
	}
	insecure = u.Scheme == "http"
	resolved = u.Scheme + "://" + u.Host + urlPath

	return u.Host, urlPath, insecure, resolved, nil
}

// InitTelemetry initializes the global tracer provider
func InitTelemetry(config TelemetryConfig) error {
	if !config.Enabled {
		return nil
	}

	provider, err := InitTelemetryWithProvider(context.Background(), &config, slog.Default())
	if err != nil {
		return err
	}

	globalProvider = provider
	globalLogger = provider.logger
	return nil
}

// InitTelemetryWithProvider sets up the OpenTelemetry tracer provider, the
// global propagator, and returns a Provider whose Shutdown flushes pending
// spans.
func InitTelemetryWithProvider(ctx context.Context, config *TelemetryConfig, logger *slog.Logger) (*Provider, error) {
	if !config.Enabled {
		return &Provider{
			Shutdown: func(context.Context) error { return nil },
			logger:   logger,
		}, nil
	}

	hostport, urlPath, insecure, resolved, err := normalizeOTLPEndpoint(config.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if config.ExportStdout {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(hostport),
			otlptracehttp.WithURLPath(urlPath),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized",
		"endpoint", resolved,
		"sample_rate", config.SampleRate,
		"environment", config.Environment,
	)

	return &Provider{Shutdown: tp.Shutdown, logger: logger}, nil
}

// Shutdown shuts down the global telemetry provider
func Shutdown() error {
	if globalProvider == nil || globalProvider.Shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return globalProvider.Shutdown(ctx)
}

// Logger returns the global slog.Logger instance for application logging
func Logger() *slog.Logger {
	if globalLogger != nil {
		return globalLogger
	}
	return slog.Default()
}

// GetLogger returns the logger captured at initialization, or nil when
// telemetry has not been initialized
func GetLogger() *slog.Logger {
	return globalLogger
}

// GetTracer returns a named tracer from the global provider
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// GetHTTPTracer returns the tracer for HTTP handling
func GetHTTPTracer() trace.Tracer {
	return GetTracer("cyclescope/http")
}

// GetDatabaseTracer returns the tracer for database operations
func GetDatabaseTracer() trace.Tracer {
	return GetTracer("cyclescope/database")
}

// GetEngineTracer returns the tracer for spectral engine operations
func GetEngineTracer() trace.Tracer {
	return GetTracer("cyclescope/engine")
}

// GetCacheTracer returns the tracer for cache operations
func GetCacheTracer() trace.Tracer {
	return GetTracer("cyclescope/cache")
}

// GetExternalTracer returns the tracer for outbound calls
func GetExternalTracer() trace.Tracer {
	return GetTracer("cyclescope/external")
}

// StartSpan starts a span on the given tracer
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordError records an error on a span and marks the span as failed
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanStatus sets the status of a span
func SetSpanStatus(span trace.Span, code codes.Code, description string) {
	span.SetStatus(code, description)
}

// StringAttribute creates a string attribute
func StringAttribute(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// StringSliceAttribute creates a string slice attribute
func StringSliceAttribute(key string, value []string) attribute.KeyValue {
	return attribute.StringSlice(key, value)
}

// Int64Attribute creates an int64 attribute
func Int64Attribute(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}

// Float64Attribute creates a float64 attribute
func Float64Attribute(key string, value float64) attribute.KeyValue {
	return attribute.Float64(key, value)
}

// BoolAttribute creates a bool attribute
func BoolAttribute(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}

package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/cyclescope-go/internal/telemetry"
)

// TelemetryMiddleware opens a server span per request with request and
// response attributes. Health probes are traced separately.
func TelemetryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		tracer := telemetry.GetHTTPTracer()
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.url", c.Request.URL.String()),
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.client_ip", c.ClientIP()),
		}
		if routePath := c.FullPath(); routePath != "" {
			attrs = append(attrs, attribute.String("http.route", routePath))
		}

		ctx, span := tracer.Start(
			ctx,
			fmt.Sprintf("HTTP %s %s", c.Request.Method, c.Request.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int64("http.response.time_ms", time.Since(start).Milliseconds()),
			attribute.Int64("http.response.size_bytes", int64(c.Writer.Size())),
		)
		if statusCode >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
			span.RecordError(fmt.Errorf("HTTP %d", statusCode))
		} else {
			span.SetStatus(codes.Ok, fmt.Sprintf("HTTP %d", statusCode))
		}
	}
}

// HealthCheckTelemetryMiddleware traces health probes with a lighter span so
// probe noise stays distinguishable from API traffic.
func HealthCheckTelemetryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tracer := telemetry.GetHTTPTracer()

		ctx, span := tracer.Start(
			c.Request.Context(),
			fmt.Sprintf("Health %s", c.Request.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("span.type", "health_check"),
		)
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int64("http.response.time_ms", time.Since(start).Milliseconds()),
		)
		if statusCode >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("health check failed: HTTP %d", statusCode))
		} else {
			span.SetStatus(codes.Ok, fmt.Sprintf("HTTP %d", statusCode))
		}
	}
}

// RecordError flags the current request span with a handler error.
func RecordError(c *gin.Context, err error, description string) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
	}
}

// AddSpanAttribute attaches one attribute to the current request span.
func AddSpanAttribute(c *gin.Context, key string, value interface{}) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	default:
		span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", value)))
	}
}

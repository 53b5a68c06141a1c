package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EngineTracer provides utilities for tracing spectral engine operations.
// It allows detailed tracking of domain activities like heatmap builds,
// bandpass reconstruction, and cycle evaluation.
type EngineTracer struct {
	tracer trace.Tracer
}

// NewEngineTracer creates a new instance of EngineTracer
func NewEngineTracer() *EngineTracer {
	return &EngineTracer{tracer: GetEngineTracer()}
}

// TraceHeatmapBuild starts a span for the rolling spectral heatmap build
func (et *EngineTracer) TraceHeatmapBuild(ctx context.Context, symbol string, windowSize, gridSize int) (context.Context, trace.Span) {
	ctx, span := et.tracer.Start(ctx, "heatmap_build")
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Int("window_size", windowSize),
		attribute.Int("grid_size", gridSize),
	)
	return ctx, span
}

// RecordHeatmapMetrics adds build results to an existing heatmap span
func (et *EngineTracer) RecordHeatmapMetrics(span trace.Span, metrics HeatmapMetrics) {
	span.SetAttributes(
		attribute.Int("weeks", metrics.Weeks),
		attribute.Int("wavelengths", metrics.Wavelengths),
		attribute.Float64("global_max", metrics.GlobalMax),
		attribute.Int("detected_cycles", metrics.DetectedCycles),
		attribute.Int64("build_time_ms", metrics.BuildTime.Milliseconds()),
	)
}

// TraceReconstruction starts a span for a bandpass reconstruction
func (et *EngineTracer) TraceReconstruction(ctx context.Context, symbol string, wavelength int, method string) (context.Context, trace.Span) {
	ctx, span := et.tracer.Start(ctx, "bandpass_reconstruction")
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Int("wavelength", wavelength),
		attribute.String("method", method),
	)
	return ctx, span
}

// RecordReconstruction adds reconstruction results to a span
func (et *EngineTracer) RecordReconstruction(span trace.Span, metrics ReconstructionMetrics) {
	span.SetAttributes(
		attribute.Int("wavelength", metrics.Wavelength),
		attribute.String("method", metrics.Method),
		attribute.Float64("amplitude", metrics.Amplitude),
		attribute.Float64("phase_degrees", metrics.PhaseDegrees),
		attribute.Int("future_days", metrics.FutureDays),
		attribute.Int("peaks", metrics.Peaks),
		attribute.Int("troughs", metrics.Troughs),
	)
}

// TraceEvaluation starts a span for a cycle evaluation pass
func (et *EngineTracer) TraceEvaluation(ctx context.Context, symbol string, wavelength int) (context.Context, trace.Span) {
	ctx, span := et.tracer.Start(ctx, "cycle_evaluation")
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Int("wavelength", wavelength),
	)
	return ctx, span
}

// RecordEvaluation records evaluation scores onto a span
func (et *EngineTracer) RecordEvaluation(span trace.Span, metrics EvaluationMetrics) {
	span.SetAttributes(
		attribute.Float64("yield_percent", metrics.YieldPercent),
		attribute.Int("num_trades", metrics.NumTrades),
		attribute.Float64("health_score", metrics.HealthScore),
		attribute.Float64("bartels_score", metrics.BartelsScore),
		attribute.Int("quality_stars", metrics.QualityStars),
		attribute.String("rating_class", metrics.RatingClass),
	)
}

// TraceIndicatorCalculation starts a span for a technical indicator pass
func (et *EngineTracer) TraceIndicatorCalculation(ctx context.Context, indicator string, symbol string) (context.Context, trace.Span) {
	ctx, span := et.tracer.Start(ctx, "indicator_calculation")
	span.SetAttributes(
		attribute.String("indicator", indicator),
		attribute.String("symbol", symbol),
	)
	return ctx, span
}

// TraceNotification starts a span for alert delivery
func (et *EngineTracer) TraceNotification(ctx context.Context, notificationType string, channel string) (context.Context, trace.Span) {
	ctx, span := et.tracer.Start(ctx, "notification")
	span.SetAttributes(
		attribute.String("notification_type", notificationType),
		attribute.String("channel", channel),
	)
	return ctx, span
}

// RecordNotificationResult records the outcome of a notification attempt
func (et *EngineTracer) RecordNotificationResult(span trace.Span, success bool, recipientCount int, err error) {
	span.SetAttributes(
		attribute.Bool("success", success),
		attribute.Int("recipient_count", recipientCount),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// HeatmapMetrics defines the structure for tracking heatmap build results in telemetry.
type HeatmapMetrics struct {
	Weeks          int
	Wavelengths    int
	GlobalMax      float64
	DetectedCycles int
	BuildTime      time.Duration
}

// ReconstructionMetrics defines the structure for tracking bandpass reconstruction results in telemetry.
type ReconstructionMetrics struct {
	Wavelength   int
	Method       string
	Amplitude    float64
	PhaseDegrees float64
	FutureDays   int
	Peaks        int
	Troughs      int
}

// EvaluationMetrics defines the structure for tracking cycle evaluation scores in telemetry.
type EvaluationMetrics struct {
	YieldPercent float64
	NumTrades    int
	HealthScore  float64
	BartelsScore float64
	QualityStars int
	RatingClass  string
}

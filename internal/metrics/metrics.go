package metrics

import (
	"strconv"
	"time"

	"github.com/irfndi/cyclescope-go/internal/logging"
)

// Package metrics provides collection and reporting functionality for
// application metrics including API throughput, analysis cache efficiency,
// alert scan outcomes and system resource usage. Metrics are emitted as
// structured log records so the OTLP pipeline picks them up without a
// separate exporter.

// MetricType represents the type of metric being recorded.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeTiming    MetricType = "timing"
)

// Metric represents a standardized metric structure.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Unit      string            `json:"unit"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// MetricsCollector provides standardized metrics collection.
type MetricsCollector struct {
	logger      *logging.StandardLogger
	serviceName string
}

// NewMetricsCollector creates a new metrics collector.
//
// Parameters:
//
//	logger: Standard logger.
//	serviceName: Name of the service.
//
// Returns:
//
//	*MetricsCollector: Initialized collector.
func NewMetricsCollector(logger *logging.StandardLogger, serviceName string) *MetricsCollector {
	return &MetricsCollector{
		logger:      logger,
		serviceName: serviceName,
	}
}

// RecordCounter records a counter metric.
//
// Parameters:
//
//	name: Metric name.
//	value: Counter increment value.
//	tags: Metric tags.
func (mc *MetricsCollector) RecordCounter(name string, value float64, tags map[string]string) {
	metric := Metric{
		Name:      name,
		Type:      MetricTypeCounter,
		Value:     value,
		Unit:      "count",
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
	}
	mc.logMetric(metric)
}

// RecordGauge records a gauge metric.
//
// Parameters:
//
//	name: Metric name.
//	value: Gauge value.
//	unit: Unit of measurement.
//	tags: Metric tags.
func (mc *MetricsCollector) RecordGauge(name string, value float64, unit string, tags map[string]string) {
	metric := Metric{
		Name:      name,
		Type:      MetricTypeGauge,
		Value:     value,
		Unit:      unit,
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
	}
	mc.logMetric(metric)
}

// RecordTiming records a timing metric.
//
// Parameters:
//
//	name: Metric name.
//	duration: Duration value.
//	tags: Metric tags.
func (mc *MetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	metric := Metric{
		Name:      name,
		Type:      MetricTypeTiming,
		Value:     float64(duration.Milliseconds()),
		Unit:      "ms",
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
	}
	mc.logMetric(metric)
}

// RecordHistogram records a histogram metric.
//
// Parameters:
//
//	name: Metric name.
//	value: Metric value.
//	unit: Unit of measurement.
//	tags: Metric tags.
func (mc *MetricsCollector) RecordHistogram(name string, value float64, unit string, tags map[string]string) {
	metric := Metric{
		Name:      name,
		Type:      MetricTypeHistogram,
		Value:     value,
		Unit:      unit,
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
	}
	mc.logMetric(metric)
}

// addServiceTag adds the service name to tags
func (mc *MetricsCollector) addServiceTag(tags map[string]string) map[string]string {
	// Create a copy of the input map to avoid modifying the original
	result := make(map[string]string)
	for k, v := range tags {
		result[k] = v
	}
	result["service"] = mc.serviceName
	return result
}

// logMetric logs the metric using the standardized logger
func (mc *MetricsCollector) logMetric(metric Metric) {
	mc.logger.Logger().Debug("Metric recorded",
		"event", "metric",
		"metric", metric,
	)
}

// Performance metrics helpers

// RecordAPIRequestMetrics records standardized API request metrics.
//
// Parameters:
//
//	method: HTTP method.
//	endpoint: API endpoint.
//	statusCode: HTTP status code.
//	duration: Request duration.
func (mc *MetricsCollector) RecordAPIRequestMetrics(method, endpoint string, statusCode int, duration time.Duration) {
	tags := map[string]string{
		"method":      method,
		"endpoint":    endpoint,
		"status_code": strconv.Itoa(statusCode),
	}

	mc.RecordCounter("api_requests_total", 1, tags)
	mc.RecordTiming("api_request_duration", duration, tags)
}

// RecordCacheStats records analysis cache counters gathered during a
// collection pass.
//
// Parameters:
//
//	hits: Cumulative cache hits.
//	misses: Cumulative cache misses.
//	sets: Cumulative cache writes.
//	hitRate: Hit rate percentage.
func (mc *MetricsCollector) RecordCacheStats(hits, misses, sets int64, hitRate float64) {
	tags := map[string]string{}

	mc.RecordGauge("cache_hits", float64(hits), "count", tags)
	mc.RecordGauge("cache_misses", float64(misses), "count", tags)
	mc.RecordGauge("cache_sets", float64(sets), "count", tags)
	mc.RecordGauge("cache_hit_rate", hitRate, "percent", tags)
}

// RecordAlertScanMetrics records one completed cycle alert sweep.
//
// Parameters:
//
//	watchedSymbols: Number of symbols scanned.
//	sent: Alerts delivered.
//	failed: Alert deliveries that failed.
//	duration: Sweep duration.
func (mc *MetricsCollector) RecordAlertScanMetrics(watchedSymbols int, sent, failed int64, duration time.Duration) {
	tags := map[string]string{
		"watched_symbols": strconv.Itoa(watchedSymbols),
	}

	mc.RecordCounter("alert_scans_total", 1, tags)
	mc.RecordCounter("alerts_sent_total", float64(sent), tags)
	if failed > 0 {
		mc.RecordCounter("alerts_failed_total", float64(failed), tags)
	}
	mc.RecordTiming("alert_scan_duration", duration, tags)
}

// RecordSystemMetrics records standardized system resource metrics.
//
// Parameters:
//
//	memoryMB: Memory usage in MB.
//	goroutines: Number of goroutines.
//	cpuPercent: CPU usage percentage.
func (mc *MetricsCollector) RecordSystemMetrics(memoryMB, goroutines int, cpuPercent float64) {
	tags := map[string]string{}

	mc.RecordGauge("system_memory_usage", float64(memoryMB), "MB", tags)
	mc.RecordGauge("system_goroutines", float64(goroutines), "count", tags)
	mc.RecordGauge("system_cpu_usage", cpuPercent, "percent", tags)
}

package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/cyclescope-go/internal/metrics"
)

// RequestRecorder is the slice of the performance monitor the request
// metrics middleware needs.
type RequestRecorder interface {
	RequestStarted()
	RequestCompleted(duration time.Duration, success bool)
}

// RequestMetrics feeds request counts and latency into the recorder. A 5xx
// answer counts as a failure; everything else is the handler doing its job.
func RequestMetrics(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}

		recorder.RequestStarted()
		start := time.Now()

		c.Next()

		recorder.RequestCompleted(time.Since(start), c.Writer.Status() < http.StatusInternalServerError)
	}
}

// APIMetrics emits per-request metrics through the collector: a request
// counter and timing tagged by method, route and status, plus a response
// size histogram. The route template keeps tag cardinality bounded;
// unmatched paths fall back to the raw URL.
func APIMetrics(collector *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if collector == nil {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		collector.RecordAPIRequestMetrics(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
		if size := c.Writer.Size(); size > 0 {
			collector.RecordHistogram("api_response_size", float64(size), "bytes", map[string]string{
				"endpoint": endpoint,
			})
		}
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/cyclescope-go/internal/services"
)

var startTime = time.Now()

// HealthChecker is the probe shared by the database and redis wrappers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service status. The database and redis checkers are
// optional: a file-backed deployment runs without either, and an absent
// collaborator reports "not configured" without degrading the status.
type HealthHandler struct {
	db       HealthChecker
	redis    HealthChecker
	recovery *services.ErrorRecoveryManager
	version  string
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status          string            `json:"status"`
	Timestamp       time.Time         `json:"timestamp"`
	Version         string            `json:"version"`
	Uptime          string            `json:"uptime"`
	Services        map[string]string `json:"services"`
	DegradationMode bool              `json:"degradation_mode"`
}

func NewHealthHandler(db, redis HealthChecker, recovery *services.ErrorRecoveryManager, version string) *HealthHandler {
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{
		db:       db,
		redis:    redis,
		recovery: recovery,
		version:  version,
	}
}

// HealthCheck probes every configured collaborator. Any unhealthy probe or
// active degradation mode answers 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	checks := map[string]string{
		"database": h.probe(ctx, h.db),
		"redis":    h.probe(ctx, h.redis),
	}

	status := "healthy"
	for _, state := range checks {
		if state != "healthy" && state != "not configured" {
			status = "degraded"
			break
		}
	}

	degraded := false
	if h.recovery != nil && h.recovery.IsInDegradationMode() {
		degraded = true
		status = "degraded"
	}

	response := HealthResponse{
		Status:          status,
		Timestamp:       time.Now().UTC(),
		Version:         h.version,
		Uptime:          time.Since(startTime).String(),
		Services:        checks,
		DegradationMode: degraded,
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

func (h *HealthHandler) probe(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "not configured"
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cyclescope-go/internal/middleware"
	"github.com/irfndi/cyclescope-go/internal/models"
	"github.com/irfndi/cyclescope-go/internal/services"
)

// CatalogRefresher re-reads the price-history catalog. The file-backed
// provider satisfies it; database deployments run without one.
type CatalogRefresher interface {
	Refresh() error
}

// AdminHandler serves the operator endpoints: session tokens, cache
// flushing, catalog refresh and runtime status.
type AdminHandler struct {
	auth     *middleware.AdminAuth
	analysis *services.AnalysisService
	catalog  CatalogRefresher
	recovery *services.ErrorRecoveryManager
	monitor  *services.PerformanceMonitor
	logger   *logrus.Logger
}

func NewAdminHandler(
	auth *middleware.AdminAuth,
	analysis *services.AnalysisService,
	catalog CatalogRefresher,
	recovery *services.ErrorRecoveryManager,
	monitor *services.PerformanceMonitor,
	logger *logrus.Logger,
) *AdminHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &AdminHandler{
		auth:     auth,
		analysis: analysis,
		catalog:  catalog,
		recovery: recovery,
		monitor:  monitor,
		logger:   logger,
	}
}

// IssueToken exchanges the admin API key for a short-lived session token.
func (h *AdminHandler) IssueToken(c *gin.Context) {
	var req models.AdminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key is required"})
		return
	}

	token, expiresAt, err := h.auth.IssueToken(req.APIKey)
	if err != nil {
		h.logger.WithError(err).Warn("Admin token request rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
		return
	}

	c.JSON(http.StatusOK, models.AdminTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// FlushCache drops every cached analysis result.
func (h *AdminHandler) FlushCache(c *gin.Context) {
	if err := h.analysis.ClearCache(c.Request.Context()); err != nil {
		middleware.RecordError(c, err, "cache flush failed")
		h.logger.WithError(err).Error("Cache flush failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Analysis cache flushed")
	c.JSON(http.StatusOK, gin.H{
		"message":   "analysis cache flushed",
		"timestamp": time.Now().UTC(),
	})
}

// RefreshCatalog re-reads the symbol catalog from the price source.
func (h *AdminHandler) RefreshCatalog(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "catalog refresh is not available for this price source"})
		return
	}

	if err := h.catalog.Refresh(); err != nil {
		middleware.RecordError(c, err, "catalog refresh failed")
		h.logger.WithError(err).Error("Catalog refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Symbol catalog refreshed")
	c.JSON(http.StatusOK, gin.H{
		"message":   "symbol catalog refreshed",
		"timestamp": time.Now().UTC(),
	})
}

// Status reports circuit breakers, degradation mode and the performance
// snapshot for operators.
func (h *AdminHandler) Status(c *gin.Context) {
	status := gin.H{"timestamp": time.Now().UTC()}

	if h.recovery != nil {
		status["circuit_breakers"] = h.recovery.GetCircuitBreakerStatus()
		status["degradation_mode"] = h.recovery.IsInDegradationMode()
	}
	if h.monitor != nil {
		status["performance"] = h.monitor.GetPerformanceReport()
	}

	c.JSON(http.StatusOK, status)
}

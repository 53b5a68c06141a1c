package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cyclescope-go/internal/middleware"
	"github.com/irfndi/cyclescope-go/internal/models"
	"github.com/irfndi/cyclescope-go/internal/services"
)

// IndicatorHandler serves the technical indicator suite.
type IndicatorHandler struct {
	indicators *services.TechnicalAnalysisService
	logger     *logrus.Logger
}

func NewIndicatorHandler(indicators *services.TechnicalAnalysisService, logger *logrus.Logger) *IndicatorHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &IndicatorHandler{
		indicators: indicators,
		logger:     logger,
	}
}

// GetIndicators computes the requested indicator families for a symbol.
// Repeated indicators params filter the set; period overrides the
// period-driven families.
func (h *IndicatorHandler) GetIndicators(c *gin.Context) {
	var req models.TechnicalAnalysisRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol parameter is required"})
		return
	}
	if req.Period < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must not be negative"})
		return
	}

	resp, err := h.indicators.Analyze(c.Request.Context(), req)
	if err != nil {
		middleware.RecordError(c, err, "indicator calculation failed")
		h.logger.WithError(err).WithField("symbol", req.Symbol).Warn("Indicator calculation failed")

		if errors.Is(err, models.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	middleware.AddSpanAttribute(c, "symbol", req.Symbol)
	middleware.AddSpanAttribute(c, "signals", len(resp.Signals))
	c.JSON(http.StatusOK, resp)
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cyclescope-go/internal/cycles"
	"github.com/irfndi/cyclescope-go/internal/middleware"
	"github.com/irfndi/cyclescope-go/internal/models"
	"github.com/irfndi/cyclescope-go/internal/services"
)

// CycleHandler serves the spectral analysis endpoints.
type CycleHandler struct {
	analysis *services.AnalysisService
	logger   *logrus.Logger
}

func NewCycleHandler(analysis *services.AnalysisService, logger *logrus.Logger) *CycleHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &CycleHandler{
		analysis: analysis,
		logger:   logger,
	}
}

// Analyze runs the full heatmap analysis for a symbol.
func (h *CycleHandler) Analyze(c *gin.Context) {
	var req models.CycleAnalysisRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol parameter is required"})
		return
	}
	if req.WindowSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window_size must not be negative"})
		return
	}

	resp, err := h.analysis.AnalyzeSymbol(c.Request.Context(), req.Symbol, req.WindowSize)
	if err != nil {
		h.respondError(c, err, "cycle analysis failed")
		return
	}

	middleware.AddSpanAttribute(c, "symbol", resp.Symbol)
	middleware.AddSpanAttribute(c, "detected_cycles", len(resp.PeakCycles))
	c.JSON(http.StatusOK, resp)
}

// Bandpass reconstructs a single cycle at the requested wavelength.
func (h *CycleHandler) Bandpass(c *gin.Context) {
	var req models.BandpassRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and selected_wavelength parameters are required"})
		return
	}
	if req.SelectedWavelength <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selected_wavelength must be positive"})
		return
	}
	if !validMethod(req.Method) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "method must be wavelet_phase or actual_price_peaks"})
		return
	}
	if !validAlignment(req.AlignTo) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "align_to must be trough, peak or auto"})
		return
	}

	resp, err := h.analysis.ReconstructBandpass(c.Request.Context(), req.Symbol, req.SelectedWavelength, services.BandpassParams{
		WindowSize:   req.WindowSize,
		Method:       req.Method,
		AlignTo:      req.AlignTo,
		ExtendFuture: req.ExtendFuture,
	})
	if err != nil {
		h.respondError(c, err, "bandpass reconstruction failed")
		return
	}

	middleware.AddSpanAttribute(c, "symbol", resp.Symbol)
	middleware.AddSpanAttribute(c, "wavelength", resp.Bandpass.Wavelength)
	c.JSON(http.StatusOK, resp)
}

// Evaluate scores one cycle of a symbol with every engine scorer.
func (h *CycleHandler) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol parameter is required"})
		return
	}
	if req.Wavelength < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wavelength must not be negative"})
		return
	}

	eval, err := h.analysis.EvaluateCycle(c.Request.Context(), req.Symbol, req.Wavelength)
	if err != nil {
		h.respondError(c, err, "cycle evaluation failed")
		return
	}

	middleware.AddSpanAttribute(c, "symbol", eval.Symbol)
	middleware.AddSpanAttribute(c, "wavelength", eval.Wavelength)
	c.JSON(http.StatusOK, eval)
}

// ListSymbols returns the price-history catalog.
func (h *CycleHandler) ListSymbols(c *gin.Context) {
	symbols, err := h.analysis.ListSymbols(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list symbols")
		return
	}

	c.JSON(http.StatusOK, models.SymbolsResponse{
		Symbols:   symbols,
		Count:     len(symbols),
		Timestamp: time.Now().UTC(),
	})
}

func (h *CycleHandler) respondError(c *gin.Context, err error, description string) {
	middleware.RecordError(c, err, description)
	h.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn(description)

	if errors.Is(err, models.ErrSymbolNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func validMethod(method string) bool {
	switch method {
	case "", cycles.MethodWaveletPhase, cycles.MethodActualPricePeaks:
		return true
	}
	return false
}

func validAlignment(alignTo string) bool {
	switch alignTo {
	case "", cycles.AlignTrough, cycles.AlignPeak, cycles.AlignAuto:
		return true
	}
	return false
}

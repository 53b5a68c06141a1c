package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cyclescope-go/internal/api/handlers"
	"github.com/irfndi/cyclescope-go/internal/metrics"
	"github.com/irfndi/cyclescope-go/internal/middleware"
	"github.com/irfndi/cyclescope-go/internal/services"
)

// SetupRoutes wires every endpoint. The database and redis checkers, the
// catalog refresher, the recovery manager, the monitor and the collector are
// all optional; handlers degrade per collaborator instead of failing at
// startup.
func SetupRoutes(
	router *gin.Engine,
	analysisService *services.AnalysisService,
	indicatorService *services.TechnicalAnalysisService,
	adminAuth *middleware.AdminAuth,
	catalog handlers.CatalogRefresher,
	db handlers.HealthChecker,
	redis handlers.HealthChecker,
	errorRecovery *services.ErrorRecoveryManager,
	monitor *services.PerformanceMonitor,
	collector *metrics.MetricsCollector,
	version string,
	logger *logrus.Logger,
) {
	cycleHandler := handlers.NewCycleHandler(analysisService, logger)
	indicatorHandler := handlers.NewIndicatorHandler(indicatorService, logger)
	healthHandler := handlers.NewHealthHandler(db, redis, errorRecovery, version)
	adminHandler := handlers.NewAdminHandler(adminAuth, analysisService, catalog, errorRecovery, monitor, logger)

	healthGroup := router.Group("/")
	healthGroup.Use(middleware.HealthCheckTelemetryMiddleware())
	{
		healthGroup.GET("/health", healthHandler.HealthCheck)
		healthGroup.HEAD("/health", healthHandler.HealthCheck)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelemetryMiddleware())
	if monitor != nil {
		v1.Use(middleware.RequestMetrics(monitor))
	}
	if collector != nil {
		v1.Use(middleware.APIMetrics(collector))
	}
	{
		cycles := v1.Group("/cycles")
		{
			cycles.GET("/analyze", cycleHandler.Analyze)
			cycles.GET("/bandpass", cycleHandler.Bandpass)
			cycles.GET("/evaluate", cycleHandler.Evaluate)
		}

		v1.GET("/symbols", cycleHandler.ListSymbols)

		analysis := v1.Group("/analysis")
		{
			analysis.GET("/indicators", indicatorHandler.GetIndicators)
		}

		v1.POST("/admin/token", adminHandler.IssueToken)

		admin := v1.Group("/admin")
		admin.Use(adminAuth.RequireAdminAuth())
		{
			admin.DELETE("/cache", adminHandler.FlushCache)
			admin.POST("/catalog/refresh", adminHandler.RefreshCatalog)
			admin.GET("/status", adminHandler.Status)
		}
	}

	// The original dashboard calls these paths; keep them answering.
	legacy := router.Group("/api")
	legacy.Use(middleware.TelemetryMiddleware())
	{
		legacy.GET("/analyze", cycleHandler.Analyze)
		legacy.GET("/bandpass", cycleHandler.Bandpass)
	}
}

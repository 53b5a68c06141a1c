package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/cyclescope-go/internal/api"
	"github.com/irfndi/cyclescope-go/internal/api/handlers"
	"github.com/irfndi/cyclescope-go/internal/cache"
	"github.com/irfndi/cyclescope-go/internal/config"
	"github.com/irfndi/cyclescope-go/internal/database"
	"github.com/irfndi/cyclescope-go/internal/logging"
	"github.com/irfndi/cyclescope-go/internal/marketdata"
	"github.com/irfndi/cyclescope-go/internal/metrics"
	"github.com/irfndi/cyclescope-go/internal/middleware"
	"github.com/irfndi/cyclescope-go/internal/services"
	"github.com/irfndi/cyclescope-go/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local runs keep secrets in .env; production sets real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize telemetry first so every later component can open spans.
	if err := telemetry.InitTelemetry(telemetry.TelemetryConfig{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Telemetry.SampleRatio,
		ExportStdout: cfg.Telemetry.ExportStdout,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	appLogger := logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})

	// Services take logrus; the slog-based appLogger handles lifecycle events.
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logging.ParseLogrusLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errorRecovery := services.NewErrorRecoveryManager(logger)
	for name, policy := range services.DefaultRetryPolicies() {
		errorRecovery.RegisterRetryPolicy(name, policy)
	}
	errorRecovery.RegisterCircuitBreaker("telegram_send", 5, time.Minute)

	redisConn, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisConn.Close()

	analysisCache := cache.NewRedisAnalysisCache(redisConn.Client, cfg.Cache.Prefix, cfg.Cache.TTLDuration())

	// Price history comes from the database when one is configured and from
	// the flat-file provider otherwise. Only the provider can re-scan its
	// catalog, and only a real database participates in health checks.
	var priceSource services.PriceSource
	var catalog handlers.CatalogRefresher
	var dbChecker handlers.HealthChecker
	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		priceSource = database.NewPriceRepository(database.NewTracedDB(db.Pool))
		dbChecker = db
	} else {
		provider, err := marketdata.NewProvider(cfg.MarketData)
		if err != nil {
			return fmt.Errorf("failed to open market data dir: %w", err)
		}
		priceSource = provider
		catalog = provider
	}

	optimizer := services.NewResourceOptimizer(services.ResourceOptimizerConfig{})
	collector := metrics.NewMetricsCollector(appLogger, cfg.Telemetry.ServiceName)
	monitor := services.NewPerformanceMonitor(ctx, logger, redisConn.Client, analysisCache, optimizer, collector)
	go monitor.Start()
	defer monitor.Stop()

	analysisService := services.NewAnalysisService(priceSource, analysisCache, cfg.Engine, optimizer, logger)
	indicatorService := services.NewTechnicalAnalysisService(priceSource, errorRecovery, logger)
	adminAuth := middleware.NewAdminAuth(cfg.Security)

	// A missing or invalid bot token disables alert delivery but never
	// blocks the API from serving.
	var sender services.AlertSender
	if cfg.Telegram.BotToken != "" {
		notifier, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, errorRecovery, logger)
		if err != nil {
			logger.WithError(err).Warn("Telegram notifier unavailable, cycle alerts disabled")
		} else {
			sender = notifier
		}
	}
	alertService := services.NewAlertService(priceSource, sender, cfg.Alerts, cfg.Engine, optimizer, monitor, logger)
	go alertService.Start(ctx)
	defer alertService.Stop()

	// Pre-compute the landing-page symbol so the first dashboard hit is warm.
	if symbol := cfg.MarketData.DefaultSymbol; symbol != "" {
		go func() {
			err := analysisCache.Warm(ctx, []string{symbol}, cfg.Engine.WindowSize, func(s string) (interface{}, error) {
				return analysisService.AnalyzeSymbol(ctx, s, cfg.Engine.WindowSize)
			})
			if err != nil {
				logger.WithError(err).Warn("Analysis cache warming failed")
			}
		}()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	api.SetupRoutes(router, analysisService, indicatorService, adminAuth, catalog,
		dbChecker, redisConn, errorRecovery, monitor, collector, telemetry.ServiceVersion, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	go func() {
		appLogger.LogStartup(cfg.Telemetry.ServiceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.LogShutdown(cfg.Telemetry.ServiceName, "signal received")

	// Stop the alert scanner and background work before draining requests.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

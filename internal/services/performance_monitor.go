package services

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cyclescope-go/internal/cache"
	"github.com/irfndi/cyclescope-go/internal/metrics"
)

// PerformanceMonitor tracks system and application performance metrics. It
// samples the Go runtime and Redis on a fixed interval, pulls analysis cache
// counters, and feeds the resource optimizer so pool limits track real load.
type PerformanceMonitor struct {
	logger        *logrus.Logger
	redis         *redis.Client
	analysisCache *cache.RedisAnalysisCache
	optimizer     *ResourceOptimizer
	collector     *metrics.MetricsCollector
	ctx           context.Context
	mu            sync.RWMutex

	systemMetrics SystemMetrics
	appMetrics    ApplicationMetrics

	metricsInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
}

// SystemMetrics holds system-level performance data.
type SystemMetrics struct {
	MemoryUsage uint64    `json:"memory_usage"`
	MemoryTotal uint64    `json:"memory_total"`
	Goroutines  int       `json:"goroutines"`
	GCPauses    []float64 `json:"gc_pauses"`
	LastUpdated time.Time `json:"last_updated"`
	HeapAlloc   uint64    `json:"heap_alloc"`
	HeapSys     uint64    `json:"heap_sys"`
	HeapInuse   uint64    `json:"heap_inuse"`
	StackInuse  uint64    `json:"stack_inuse"`
	NumGC       uint32    `json:"num_gc"`
}

// ApplicationMetrics holds application-specific performance data.
type ApplicationMetrics struct {
	EngineMetrics EnginePerformanceMetrics `json:"engine"`
	RedisMetrics  RedisPerformanceMetrics  `json:"redis"`
	APIMetrics    APIPerformanceMetrics    `json:"api"`
	AlertMetrics  AlertPerformanceMetrics  `json:"alerts"`
	LastUpdated   time.Time                `json:"last_updated"`
}

// EnginePerformanceMetrics tracks analysis cache efficiency and the pool
// limits currently in force.
type EnginePerformanceMetrics struct {
	CacheHits             int64   `json:"cache_hits"`
	CacheMisses           int64   `json:"cache_misses"`
	CacheSets             int64   `json:"cache_sets"`
	CacheHitRate          float64 `json:"cache_hit_rate"`
	MaxWorkers            int     `json:"max_workers"`
	MaxConcurrentScans    int     `json:"max_concurrent_scans"`
	WorkerPoolUtilization float64 `json:"worker_pool_utilization"`
}

// RedisPerformanceMetrics tracks Redis server statistics.
type RedisPerformanceMetrics struct {
	ConnectedClients  int64 `json:"connected_clients"`
	KeyspaceHits      int64 `json:"keyspace_hits"`
	KeyspaceMisses    int64 `json:"keyspace_misses"`
	EvictedKeys       int64 `json:"evicted_keys"`
	UsedMemory        int64 `json:"used_memory"`
	CommandsProcessed int64 `json:"commands_processed"`
}

// APIPerformanceMetrics tracks HTTP request throughput.
type APIPerformanceMetrics struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	AvgResponseTime    time.Duration `json:"avg_response_time_ms"`
	ActiveRequests     int           `json:"active_requests"`
}

// AlertPerformanceMetrics tracks the cycle alert scanner.
type AlertPerformanceMetrics struct {
	ScansCompleted  int64         `json:"scans_completed"`
	AlertsSent      int64         `json:"alerts_sent"`
	AlertsFailed    int64         `json:"alerts_failed"`
	AvgScanDuration time.Duration `json:"avg_scan_duration_ms"`
	WatchedSymbols  int           `json:"watched_symbols"`
	LastScanAt      time.Time     `json:"last_scan_at"`
}

// NewPerformanceMonitor creates a new performance monitor. The Redis client,
// analysis cache, optimizer and collector are all optional; absent
// collaborators are skipped during collection.
func NewPerformanceMonitor(ctx context.Context, logger *logrus.Logger, redisClient *redis.Client, analysisCache *cache.RedisAnalysisCache, optimizer *ResourceOptimizer, collector *metrics.MetricsCollector) *PerformanceMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &PerformanceMonitor{
		logger:          logger,
		redis:           redisClient,
		analysisCache:   analysisCache,
		optimizer:       optimizer,
		collector:       collector,
		ctx:             ctx,
		metricsInterval: 30 * time.Second,
		stopChan:        make(chan struct{}),
	}
}

// Start begins performance monitoring. It blocks until Stop is called or the
// context is cancelled, so callers run it in its own goroutine.
func (pm *PerformanceMonitor) Start() {
	pm.logger.Info("Starting performance monitor")

	ticker := time.NewTicker(pm.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.collectMetrics()
		case <-pm.stopChan:
			pm.logger.Info("Performance monitor stopped")
			return
		case <-pm.ctx.Done():
			pm.logger.Info("Performance monitor context cancelled")
			return
		}
	}
}

// Stop stops performance monitoring.
func (pm *PerformanceMonitor) Stop() {
	pm.stopOnce.Do(func() { close(pm.stopChan) })
}

// collectMetrics gathers one round of metrics. The optimizer update runs
// outside the metrics lock because its CPU sample blocks for a second.
func (pm *PerformanceMonitor) collectMetrics() {
	pm.collectSystemMetrics()
	pm.collectApplicationMetrics()
	pm.updateOptimizer()
	pm.cacheMetrics()
	pm.logPerformanceSummary()
}

// collectSystemMetrics gathers Go runtime statistics.
func (pm *PerformanceMonitor) collectSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	system := SystemMetrics{
		MemoryUsage: m.Alloc,
		MemoryTotal: m.Sys,
		Goroutines:  runtime.NumGoroutine(),
		LastUpdated: time.Now(),
		HeapAlloc:   m.HeapAlloc,
		HeapSys:     m.HeapSys,
		HeapInuse:   m.HeapInuse,
		StackInuse:  m.StackInuse,
		NumGC:       m.NumGC,
	}

	if len(m.PauseNs) > 0 {
		system.GCPauses = make([]float64, len(m.PauseNs))
		for i, pause := range m.PauseNs {
			system.GCPauses[i] = float64(pause) / 1e6
		}
	}

	pm.mu.Lock()
	pm.systemMetrics = system
	pm.mu.Unlock()

	if pm.collector != nil {
		var cpuPercent float64
		if pm.optimizer != nil {
			cpuPercent, _ = pm.optimizer.CurrentLoad()
		}
		pm.collector.RecordSystemMetrics(int(system.MemoryUsage/1024/1024), system.Goroutines, cpuPercent)
	}
}

// collectApplicationMetrics gathers engine and Redis metrics.
func (pm *PerformanceMonitor) collectApplicationMetrics() {
	engine := pm.collectEngineMetrics()
	redisMetrics := pm.collectRedisMetrics()

	pm.mu.Lock()
	pm.appMetrics.EngineMetrics = engine
	if redisMetrics != nil {
		pm.appMetrics.RedisMetrics = *redisMetrics
	}
	pm.appMetrics.LastUpdated = time.Now()
	pm.mu.Unlock()

	if pm.collector != nil && pm.analysisCache != nil {
		pm.collector.RecordCacheStats(engine.CacheHits, engine.CacheMisses, engine.CacheSets, engine.CacheHitRate)
	}
}

// collectEngineMetrics pulls analysis cache counters and the current pool
// limits.
func (pm *PerformanceMonitor) collectEngineMetrics() EnginePerformanceMetrics {
	var engine EnginePerformanceMetrics

	if pm.analysisCache != nil {
		stats := pm.analysisCache.GetStats()
		engine.CacheHits = stats.Hits
		engine.CacheMisses = stats.Misses
		engine.CacheSets = stats.Sets
		if total := stats.Hits + stats.Misses; total > 0 {
			engine.CacheHitRate = float64(stats.Hits) / float64(total) * 100
		}
	}

	if pm.optimizer != nil {
		concurrency := pm.optimizer.GetOptimalConcurrency()
		engine.MaxWorkers = concurrency.MaxWorkers
		engine.MaxConcurrentScans = concurrency.MaxConcurrentScans
		engine.WorkerPoolUtilization = concurrency.WorkerPoolUtilization
	}

	return engine
}

// collectRedisMetrics gathers Redis server statistics from INFO.
func (pm *PerformanceMonitor) collectRedisMetrics() *RedisPerformanceMetrics {
	if pm.redis == nil {
		return nil
	}

	info, err := pm.redis.Info(pm.ctx, "stats", "memory", "clients").Result()
	if err != nil {
		pm.logger.WithError(err).Warn("Failed to get Redis info")
		return nil
	}

	return &RedisPerformanceMetrics{
		ConnectedClients:  parseInfoInt(info, "connected_clients"),
		KeyspaceHits:      parseInfoInt(info, "keyspace_hits"),
		KeyspaceMisses:    parseInfoInt(info, "keyspace_misses"),
		EvictedKeys:       parseInfoInt(info, "evicted_keys"),
		UsedMemory:        parseInfoInt(info, "used_memory"),
		CommandsProcessed: parseInfoInt(info, "total_commands_processed"),
	}
}

// parseInfoInt extracts an integer field from a Redis INFO response.
func parseInfoInt(info, field string) int64 {
	prefix := field + ":"
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, prefix) {
			value, err := strconv.ParseInt(strings.TrimPrefix(line, prefix), 10, 64)
			if err == nil {
				return value
			}
			return 0
		}
	}
	return 0
}

// updateOptimizer refreshes system readings and hands the optimizer a load
// snapshot derived from the API counters.
func (pm *PerformanceMonitor) updateOptimizer() {
	if pm.optimizer == nil {
		return
	}

	if err := pm.optimizer.UpdateSystemMetrics(pm.ctx); err != nil {
		pm.logger.WithError(err).Warn("Failed to update system metrics")
	}

	pm.mu.RLock()
	api := pm.appMetrics.APIMetrics
	pm.mu.RUnlock()

	errorRate := 0.0
	if api.TotalRequests > 0 {
		errorRate = float64(api.FailedRequests) / float64(api.TotalRequests) * 100
	}
	pm.optimizer.RecordPerformanceSnapshot(api.ActiveRequests, errorRate, float64(api.AvgResponseTime.Milliseconds()))
	pm.optimizer.OptimizeIfNeeded()
}

// cacheMetrics stores metrics in Redis for external access.
func (pm *PerformanceMonitor) cacheMetrics() {
	if pm.redis == nil {
		return
	}

	pm.mu.RLock()
	system := pm.systemMetrics
	app := pm.appMetrics
	pm.mu.RUnlock()

	if systemData, err := json.Marshal(system); err == nil {
		pm.redis.Set(pm.ctx, "performance:system", systemData, 5*time.Minute)
	}
	if appData, err := json.Marshal(app); err == nil {
		pm.redis.Set(pm.ctx, "performance:application", appData, 5*time.Minute)
	}
}

// logPerformanceSummary logs a summary of current performance.
func (pm *PerformanceMonitor) logPerformanceSummary() {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	pm.logger.WithFields(logrus.Fields{
		"memory_mb":      pm.systemMetrics.MemoryUsage / 1024 / 1024,
		"goroutines":     pm.systemMetrics.Goroutines,
		"heap_alloc_mb":  pm.systemMetrics.HeapAlloc / 1024 / 1024,
		"num_gc":         pm.systemMetrics.NumGC,
		"cache_hit_rate": pm.appMetrics.EngineMetrics.CacheHitRate,
		"api_requests":   pm.appMetrics.APIMetrics.TotalRequests,
	}).Debug("Performance metrics collected")
}

// RequestStarted marks an HTTP request in flight.
func (pm *PerformanceMonitor) RequestStarted() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.appMetrics.APIMetrics.ActiveRequests++
}

// RequestCompleted records a finished HTTP request. Success means the handler
// answered below the 500 range.
func (pm *PerformanceMonitor) RequestCompleted(duration time.Duration, success bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	api := &pm.appMetrics.APIMetrics
	if api.ActiveRequests > 0 {
		api.ActiveRequests--
	}
	api.TotalRequests++
	if success {
		api.SuccessfulRequests++
	} else {
		api.FailedRequests++
	}
	// Incremental mean keeps the sum from overflowing.
	api.AvgResponseTime += (duration - api.AvgResponseTime) / time.Duration(api.TotalRequests)
}

// RecordAlertScan records one completed alert sweep.
func (pm *PerformanceMonitor) RecordAlertScan(duration time.Duration, watchedSymbols int, sent, failed int64) {
	pm.mu.Lock()
	alerts := &pm.appMetrics.AlertMetrics
	alerts.ScansCompleted++
	alerts.AlertsSent += sent
	alerts.AlertsFailed += failed
	alerts.WatchedSymbols = watchedSymbols
	alerts.LastScanAt = time.Now()
	alerts.AvgScanDuration += (duration - alerts.AvgScanDuration) / time.Duration(alerts.ScansCompleted)
	pm.mu.Unlock()

	if pm.collector != nil {
		pm.collector.RecordAlertScanMetrics(watchedSymbols, sent, failed, duration)
	}
}

// GetSystemMetrics returns current system metrics.
func (pm *PerformanceMonitor) GetSystemMetrics() SystemMetrics {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.systemMetrics
}

// GetApplicationMetrics returns current application metrics.
func (pm *PerformanceMonitor) GetApplicationMetrics() ApplicationMetrics {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.appMetrics
}

// GetPerformanceReport generates a combined performance report.
func (pm *PerformanceMonitor) GetPerformanceReport() map[string]interface{} {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return map[string]interface{}{
		"system":       pm.systemMetrics,
		"application":  pm.appMetrics,
		"timestamp":    time.Now(),
		"health_score": pm.calculateHealthScore(),
	}
}

// calculateHealthScore calculates an overall health score (0-100). Callers
// hold at least a read lock.
func (pm *PerformanceMonitor) calculateHealthScore() float64 {
	score := 100.0

	if pm.systemMetrics.HeapInuse > 0 && pm.systemMetrics.HeapSys > 0 {
		memoryUsagePercent := float64(pm.systemMetrics.HeapInuse) / float64(pm.systemMetrics.HeapSys) * 100
		if memoryUsagePercent > 80 {
			score -= (memoryUsagePercent - 80) * 2
		}
	}

	if pm.systemMetrics.Goroutines > 1000 {
		score -= float64(pm.systemMetrics.Goroutines-1000) * 0.01
	}

	api := pm.appMetrics.APIMetrics
	if api.TotalRequests > 0 {
		failureRate := float64(api.FailedRequests) / float64(api.TotalRequests) * 100
		if failureRate > 5 {
			score -= (failureRate - 5) * 2
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}

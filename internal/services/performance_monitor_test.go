package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cyclescope-go/internal/cache"
	"github.com/irfndi/cyclescope-go/internal/logging"
	"github.com/irfndi/cyclescope-go/internal/metrics"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestMonitor(t *testing.T) *PerformanceMonitor {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewPerformanceMonitor(context.Background(), logger, newTestRedisClient(t), nil, nil, nil)
}

func TestNewPerformanceMonitor(t *testing.T) {
	logger := logrus.New()
	redisClient := newTestRedisClient(t)
	ctx := context.Background()

	pm := NewPerformanceMonitor(ctx, logger, redisClient, nil, nil, nil)

	assert.NotNil(t, pm)
	assert.Equal(t, logger, pm.logger)
	assert.Equal(t, redisClient, pm.redis)
	assert.Equal(t, 30*time.Second, pm.metricsInterval)
	assert.NotNil(t, pm.stopChan)
}

func TestNewPerformanceMonitor_NilLogger(t *testing.T) {
	pm := NewPerformanceMonitor(context.Background(), nil, nil, nil, nil, nil)
	assert.NotNil(t, pm.logger)
}

func TestPerformanceMonitor_StartStop(t *testing.T) {
	pm := newTestMonitor(t)
	pm.metricsInterval = 10 * time.Millisecond

	go pm.Start()
	time.Sleep(50 * time.Millisecond)
	pm.Stop()
	time.Sleep(20 * time.Millisecond)

	// Repeated stops must not panic.
	assert.NotPanics(t, pm.Stop)
}

func TestPerformanceMonitor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	pm := NewPerformanceMonitor(ctx, logger, nil, nil, nil, nil)
	pm.metricsInterval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		pm.Start()
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on context cancellation")
	}
}

func TestPerformanceMonitor_CollectSystemMetrics(t *testing.T) {
	pm := newTestMonitor(t)

	metrics := pm.GetSystemMetrics()
	assert.True(t, metrics.LastUpdated.IsZero())

	pm.collectSystemMetrics()

	metrics = pm.GetSystemMetrics()
	assert.False(t, metrics.LastUpdated.IsZero())
	assert.NotZero(t, metrics.MemoryUsage)
	assert.NotZero(t, metrics.MemoryTotal)
	assert.NotZero(t, metrics.Goroutines)
	assert.NotZero(t, metrics.HeapAlloc)
	assert.NotZero(t, metrics.HeapSys)
	if len(metrics.GCPauses) > 0 {
		assert.GreaterOrEqual(t, metrics.GCPauses[0], 0.0)
	}
}

func TestPerformanceMonitor_CollectApplicationMetrics(t *testing.T) {
	redisClient := newTestRedisClient(t)
	analysisCache := cache.NewRedisAnalysisCache(redisClient, "cyclescope", time.Minute)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	optimizer := NewResourceOptimizer(ResourceOptimizerConfig{MinWorkers: 2, MaxWorkers: 8})
	pm := NewPerformanceMonitor(context.Background(), logger, redisClient, analysisCache, optimizer, nil)

	// Prime the cache counters: one miss, one set, one hit.
	ctx := context.Background()
	_, ok := analysisCache.Get(ctx, cache.KindAnalysis, "SPX", 600)
	assert.False(t, ok)
	analysisCache.Set(ctx, cache.KindAnalysis, "SPX", 600, map[string]string{"status": "ok"})
	_, ok = analysisCache.Get(ctx, cache.KindAnalysis, "SPX", 600)
	assert.True(t, ok)

	pm.collectApplicationMetrics()

	metrics := pm.GetApplicationMetrics()
	assert.False(t, metrics.LastUpdated.IsZero())
	assert.Equal(t, int64(1), metrics.EngineMetrics.CacheHits)
	assert.Equal(t, int64(1), metrics.EngineMetrics.CacheMisses)
	assert.Equal(t, int64(1), metrics.EngineMetrics.CacheSets)
	assert.InDelta(t, 50.0, metrics.EngineMetrics.CacheHitRate, 0.01)
	assert.GreaterOrEqual(t, metrics.EngineMetrics.MaxWorkers, 2)
	assert.LessOrEqual(t, metrics.EngineMetrics.MaxWorkers, 8)
}

func TestPerformanceMonitor_RequestTracking(t *testing.T) {
	pm := newTestMonitor(t)

	pm.RequestStarted()
	pm.RequestStarted()
	assert.Equal(t, 2, pm.GetApplicationMetrics().APIMetrics.ActiveRequests)

	pm.RequestCompleted(100*time.Millisecond, true)
	pm.RequestCompleted(300*time.Millisecond, false)

	api := pm.GetApplicationMetrics().APIMetrics
	assert.Equal(t, 0, api.ActiveRequests)
	assert.Equal(t, int64(2), api.TotalRequests)
	assert.Equal(t, int64(1), api.SuccessfulRequests)
	assert.Equal(t, int64(1), api.FailedRequests)
	assert.Equal(t, 200*time.Millisecond, api.AvgResponseTime)
}

func TestPerformanceMonitor_RecordAlertScan(t *testing.T) {
	pm := newTestMonitor(t)

	pm.RecordAlertScan(2*time.Second, 3, 2, 0)
	pm.RecordAlertScan(4*time.Second, 3, 0, 1)

	alerts := pm.GetApplicationMetrics().AlertMetrics
	assert.Equal(t, int64(2), alerts.ScansCompleted)
	assert.Equal(t, int64(2), alerts.AlertsSent)
	assert.Equal(t, int64(1), alerts.AlertsFailed)
	assert.Equal(t, 3, alerts.WatchedSymbols)
	assert.Equal(t, 3*time.Second, alerts.AvgScanDuration)
	assert.False(t, alerts.LastScanAt.IsZero())
}

func TestPerformanceMonitor_CacheMetrics(t *testing.T) {
	redisClient := newTestRedisClient(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	pm := NewPerformanceMonitor(context.Background(), logger, redisClient, nil, nil, nil)

	pm.collectSystemMetrics()
	pm.collectApplicationMetrics()
	pm.cacheMetrics()

	ctx := context.Background()
	systemData, err := redisClient.Get(ctx, "performance:system").Result()
	require.NoError(t, err)
	var cachedSystem SystemMetrics
	require.NoError(t, json.Unmarshal([]byte(systemData), &cachedSystem))
	assert.Equal(t, pm.GetSystemMetrics().Goroutines, cachedSystem.Goroutines)

	appData, err := redisClient.Get(ctx, "performance:application").Result()
	require.NoError(t, err)
	var cachedApp ApplicationMetrics
	require.NoError(t, json.Unmarshal([]byte(appData), &cachedApp))
	assert.Equal(t, pm.GetApplicationMetrics().LastUpdated.Unix(), cachedApp.LastUpdated.Unix())
}

func TestPerformanceMonitor_GetPerformanceReport(t *testing.T) {
	pm := newTestMonitor(t)

	pm.collectSystemMetrics()
	pm.collectApplicationMetrics()

	report := pm.GetPerformanceReport()

	assert.Contains(t, report, "system")
	assert.Contains(t, report, "application")
	assert.Contains(t, report, "timestamp")
	assert.Contains(t, report, "health_score")

	healthScore := report["health_score"].(float64)
	assert.GreaterOrEqual(t, healthScore, 0.0)
	assert.LessOrEqual(t, healthScore, 100.0)
}

func TestPerformanceMonitor_CalculateHealthScore(t *testing.T) {
	pm := newTestMonitor(t)

	pm.systemMetrics = SystemMetrics{
		HeapInuse:  100 * 1024 * 1024,
		HeapSys:    1000 * 1024 * 1024,
		Goroutines: 500,
	}
	assert.Greater(t, pm.calculateHealthScore(), 90.0)

	// High heap pressure costs points.
	pm.systemMetrics.HeapInuse = 900 * 1024 * 1024
	assert.Less(t, pm.calculateHealthScore(), 90.0)

	// Goroutine pileup costs points.
	pm.systemMetrics = SystemMetrics{
		HeapInuse:  100 * 1024 * 1024,
		HeapSys:    1000 * 1024 * 1024,
		Goroutines: 3000,
	}
	assert.Less(t, pm.calculateHealthScore(), 100.0)

	// Request failures over 5% cost points.
	pm.systemMetrics.Goroutines = 500
	pm.appMetrics.APIMetrics = APIPerformanceMetrics{
		TotalRequests:  1000,
		FailedRequests: 100,
	}
	assert.Less(t, pm.calculateHealthScore(), 95.0)
}

func TestParseInfoInt(t *testing.T) {
	info := "# Stats\r\nkeyspace_hits:1500\r\nkeyspace_misses:300\r\nused_memory:1048576\r\nconnected_clients:4\r\n"

	assert.Equal(t, int64(1500), parseInfoInt(info, "keyspace_hits"))
	assert.Equal(t, int64(300), parseInfoInt(info, "keyspace_misses"))
	assert.Equal(t, int64(1048576), parseInfoInt(info, "used_memory"))
	assert.Equal(t, int64(4), parseInfoInt(info, "connected_clients"))
	assert.Equal(t, int64(0), parseInfoInt(info, "evicted_keys"))
	assert.Equal(t, int64(0), parseInfoInt("keyspace_hits:not-a-number", "keyspace_hits"))
}

func TestPerformanceMonitor_WithNilCollaborators(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	pm := NewPerformanceMonitor(context.Background(), logger, nil, nil, nil, nil)

	assert.NotPanics(t, func() {
		pm.collectMetrics()
	})
	assert.Nil(t, pm.collectRedisMetrics())
}

func TestPerformanceMonitor_WithCollector(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	collector := metrics.NewMetricsCollector(logging.NewStandardLogger("debug", "test"), "cyclescope-test")
	optimizer := NewResourceOptimizer(ResourceOptimizerConfig{MinWorkers: 2, MaxWorkers: 8})
	pm := NewPerformanceMonitor(context.Background(), logger, nil, nil, optimizer, collector)

	// Collection and scan recording emit through the collector without panics.
	assert.NotPanics(t, func() {
		pm.collectSystemMetrics()
		pm.collectApplicationMetrics()
		pm.RecordAlertScan(time.Second, 2, 1, 0)
	})
}

func TestPerformanceMonitor_UpdateOptimizer(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	optimizer := NewResourceOptimizer(ResourceOptimizerConfig{MinWorkers: 2, MaxWorkers: 8})
	pm := NewPerformanceMonitor(context.Background(), logger, nil, nil, optimizer, nil)

	pm.RequestCompleted(2*time.Second, true)
	pm.RequestCompleted(2*time.Second, false)

	pm.updateOptimizer()

	history := optimizer.GetPerformanceHistory(1)
	require.Len(t, history, 1)
	assert.InDelta(t, 50.0, history[0].ErrorRate, 0.01)
	assert.InDelta(t, 2000.0, history[0].AvgResponseMs, 0.01)
}

func TestPerformanceMonitor_ConcurrentAccess(t *testing.T) {
	pm := newTestMonitor(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 5 {
			case 0:
				pm.GetSystemMetrics()
			case 1:
				pm.GetApplicationMetrics()
			case 2:
				pm.RequestStarted()
				pm.RequestCompleted(time.Duration(i)*time.Millisecond, i%2 == 0)
			case 3:
				pm.RecordAlertScan(time.Duration(i)*time.Millisecond, 1, 1, 0)
			case 4:
				pm.GetPerformanceReport()
			}
		}(i)
	}
	wg.Wait()

	api := pm.GetApplicationMetrics().APIMetrics
	assert.Equal(t, int64(20), api.TotalRequests)
	assert.Equal(t, 0, api.ActiveRequests)
}

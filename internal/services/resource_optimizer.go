package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/cyclescope-go/internal/telemetry"
)

// ResourceOptimizer sizes the spectral worker pools from the host's CPU and
// memory profile. Heatmap builds fan a wavelet pass out per week row, and the
// alert scanner runs one build per watched symbol, so both pools follow the
// limits calculated here.
type ResourceOptimizer struct {
	mu                 sync.RWMutex
	cfg                ResourceOptimizerConfig
	cpuCores           int
	memoryGB           float64
	currentCPUUsage    float64
	currentMemoryUsage float64
	optimalConcurrency OptimalConcurrency
	lastOptimization   time.Time
	performanceHistory []PerformanceSnapshot
	logger             *slog.Logger
}

// OptimalConcurrency holds the calculated concurrency limits.
type OptimalConcurrency struct {
	MaxWorkers            int     `json:"max_workers"`
	MaxConcurrentScans    int     `json:"max_concurrent_scans"`
	WorkerPoolUtilization float64 `json:"worker_pool_utilization"`
	MemoryThreshold       float64 `json:"memory_threshold"`
	CPUThreshold          float64 `json:"cpu_threshold"`
}

// PerformanceSnapshot captures system load and request throughput at a point
// in time.
type PerformanceSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	CPUUsage       float64   `json:"cpu_usage"`
	MemoryUsage    float64   `json:"memory_usage"`
	Goroutines     int       `json:"goroutines"`
	ActiveRequests int       `json:"active_requests"`
	ErrorRate      float64   `json:"error_rate"`
	AvgResponseMs  float64   `json:"avg_response_ms"`
}

// ResourceOptimizerConfig holds configuration for the resource optimizer.
type ResourceOptimizerConfig struct {
	OptimizationInterval time.Duration `yaml:"optimization_interval" default:"5m"`
	AdaptiveMode         bool          `yaml:"adaptive_mode" default:"true"`
	MaxHistorySize       int           `yaml:"max_history_size" default:"100"`
	CPUThreshold         float64       `yaml:"cpu_threshold" default:"80.0"`
	MemoryThreshold      float64       `yaml:"memory_threshold" default:"85.0"`
	MinWorkers           int           `yaml:"min_workers" default:"2"`
	MaxWorkers           int           `yaml:"max_workers" default:"20"`
}

// NewResourceOptimizer creates a new resource optimizer.
func NewResourceOptimizer(config ResourceOptimizerConfig) *ResourceOptimizer {
	if config.OptimizationInterval == 0 {
		config.OptimizationInterval = 5 * time.Minute
	}
	if config.MaxHistorySize == 0 {
		config.MaxHistorySize = 100
	}
	if config.CPUThreshold == 0 {
		config.CPUThreshold = 80.0
	}
	if config.MemoryThreshold == 0 {
		config.MemoryThreshold = 85.0
	}
	if config.MinWorkers == 0 {
		config.MinWorkers = 2
	}
	if config.MaxWorkers == 0 {
		config.MaxWorkers = 20
	}

	ro := &ResourceOptimizer{
		cfg:                config,
		cpuCores:           runtime.NumCPU(),
		lastOptimization:   time.Now(),
		performanceHistory: make([]PerformanceSnapshot, 0),
		logger:             telemetry.Logger(),
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		ro.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		ro.logger.Warn("Could not get memory info, using default", "error", err)
		ro.memoryGB = 8.0
	}

	ro.calculateOptimalConcurrency()

	ro.logger.Info("Resource optimizer initialized",
		"cpu_cores", ro.cpuCores,
		"memory_gb", ro.memoryGB,
		"adaptive_mode", ro.cfg.AdaptiveMode)

	return ro
}

// calculateOptimalConcurrency derives pool limits from cores, memory headroom
// and the load observed since the last pass.
func (ro *ResourceOptimizer) calculateOptimalConcurrency() {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	// Spectral rows are CPU bound, so start from 2x cores.
	baseWorkers := ro.cpuCores * 2
	if baseWorkers < ro.cfg.MinWorkers {
		baseWorkers = ro.cfg.MinWorkers
	}
	if baseWorkers > ro.cfg.MaxWorkers {
		baseWorkers = ro.cfg.MaxWorkers
	}

	// Each worker holds a wavelet kernel bank, so back off on small hosts.
	memoryFactor := 1.0
	if ro.memoryGB < 4.0 {
		memoryFactor = 0.5
	} else if ro.memoryGB < 8.0 {
		memoryFactor = 0.75
	}

	loadFactor := 1.0
	if ro.currentCPUUsage > ro.cfg.CPUThreshold {
		loadFactor = 0.7
	} else if ro.currentMemoryUsage > ro.cfg.MemoryThreshold {
		loadFactor = 0.8
	}

	maxWorkers := int(float64(baseWorkers) * memoryFactor * loadFactor)
	if maxWorkers < ro.cfg.MinWorkers {
		maxWorkers = ro.cfg.MinWorkers
	}

	// Alert scans each run a full spectrum build, so cap them harder.
	maxScans := maxWorkers / 2
	if maxScans > 8 {
		maxScans = 8
	}
	if maxScans < 1 {
		maxScans = 1
	}

	ro.optimalConcurrency = OptimalConcurrency{
		MaxWorkers:            maxWorkers,
		MaxConcurrentScans:    maxScans,
		WorkerPoolUtilization: 0.8,
		MemoryThreshold:       ro.cfg.MemoryThreshold,
		CPUThreshold:          ro.cfg.CPUThreshold,
	}

	ro.logger.Info("Calculated optimal concurrency",
		"max_workers", ro.optimalConcurrency.MaxWorkers,
		"max_concurrent_scans", ro.optimalConcurrency.MaxConcurrentScans,
		"memory_factor", memoryFactor,
		"load_factor", loadFactor)
}

// GetOptimalConcurrency returns the current optimal concurrency settings.
func (ro *ResourceOptimizer) GetOptimalConcurrency() OptimalConcurrency {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return ro.optimalConcurrency
}

// CurrentLoad returns the most recent CPU and memory usage readings.
func (ro *ResourceOptimizer) CurrentLoad() (cpuPercent, memoryPercent float64) {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return ro.currentCPUUsage, ro.currentMemoryUsage
}

// UpdateSystemMetrics refreshes current CPU and memory usage readings.
func (ro *ResourceOptimizer) UpdateSystemMetrics(ctx context.Context) error {
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(cpuPercent) > 0 {
		ro.mu.Lock()
		ro.currentCPUUsage = cpuPercent[0]
		ro.mu.Unlock()
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}
	ro.mu.Lock()
	ro.currentMemoryUsage = memInfo.UsedPercent
	ro.mu.Unlock()

	return nil
}

// RecordPerformanceSnapshot records request throughput alongside the latest
// system readings.
func (ro *ResourceOptimizer) RecordPerformanceSnapshot(activeRequests int, errorRate, avgResponseMs float64) {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	snapshot := PerformanceSnapshot{
		Timestamp:      time.Now(),
		CPUUsage:       ro.currentCPUUsage,
		MemoryUsage:    ro.currentMemoryUsage,
		Goroutines:     runtime.NumGoroutine(),
		ActiveRequests: activeRequests,
		ErrorRate:      errorRate,
		AvgResponseMs:  avgResponseMs,
	}

	ro.performanceHistory = append(ro.performanceHistory, snapshot)
	if len(ro.performanceHistory) > ro.cfg.MaxHistorySize {
		ro.performanceHistory = ro.performanceHistory[1:]
	}
}

// OptimizeIfNeeded recalculates the limits when the optimization interval has
// elapsed, or earlier when adaptive mode sees sustained pressure. It reports
// whether a recalculation ran.
func (ro *ResourceOptimizer) OptimizeIfNeeded() bool {
	ro.mu.RLock()
	lastOpt := ro.lastOptimization
	adaptive := ro.cfg.AdaptiveMode
	interval := ro.cfg.OptimizationInterval
	ro.mu.RUnlock()

	if time.Since(lastOpt) < interval {
		// Between intervals only adaptive pressure forces a recalculation.
		if !adaptive || !ro.shouldOptimize() {
			return false
		}
		ro.logger.Info("Adaptive optimization triggered by performance pressure")
	} else {
		ro.logger.Info("Scheduled optimization", "interval", interval)
	}

	ro.calculateOptimalConcurrency()
	ro.mu.Lock()
	ro.lastOptimization = time.Now()
	ro.mu.Unlock()
	return true
}

// shouldOptimize reports whether recent snapshots show sustained pressure.
func (ro *ResourceOptimizer) shouldOptimize() bool {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	// Need at least 5 snapshots to judge a trend.
	if len(ro.performanceHistory) < 5 {
		return false
	}

	recent := ro.performanceHistory[len(ro.performanceHistory)-5:]

	var avgCPU, avgMemory, avgErrorRate, avgResponse float64
	for _, snapshot := range recent {
		avgCPU += snapshot.CPUUsage
		avgMemory += snapshot.MemoryUsage
		avgErrorRate += snapshot.ErrorRate
		avgResponse += snapshot.AvgResponseMs
	}
	avgCPU /= float64(len(recent))
	avgMemory /= float64(len(recent))
	avgErrorRate /= float64(len(recent))
	avgResponse /= float64(len(recent))

	// A full heatmap build legitimately takes seconds, so the latency bar
	// sits well above it.
	if avgCPU > 85.0 || avgMemory > 90.0 || avgErrorRate > 5.0 || avgResponse > 5000.0 {
		return true
	}
	return runtime.NumGoroutine() > 1000
}

// GetPerformanceHistory returns up to limit recent snapshots, oldest first.
func (ro *ResourceOptimizer) GetPerformanceHistory(limit int) []PerformanceSnapshot {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	if limit <= 0 || limit > len(ro.performanceHistory) {
		limit = len(ro.performanceHistory)
	}

	start := len(ro.performanceHistory) - limit
	history := make([]PerformanceSnapshot, limit)
	copy(history, ro.performanceHistory[start:])
	return history
}

// GetSystemInfo returns current system information for diagnostics.
func (ro *ResourceOptimizer) GetSystemInfo() map[string]interface{} {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	return map[string]interface{}{
		"cpu_cores":         ro.cpuCores,
		"memory_gb":         ro.memoryGB,
		"current_cpu":       ro.currentCPUUsage,
		"current_memory":    ro.currentMemoryUsage,
		"goroutines":        runtime.NumGoroutine(),
		"last_optimization": ro.lastOptimization,
		"adaptive_mode":     ro.cfg.AdaptiveMode,
		"optimal_config":    ro.optimalConcurrency,
	}
}

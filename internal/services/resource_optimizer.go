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

	"github.com/irfndi/redzone-go/internal/telemetry"
)

// ResourceOptimizer sizes the pipeline's worker pools from the host's CPU and
// memory, shrinking them while the host is under load.
type ResourceOptimizer struct {
	mu                 sync.RWMutex
	cfg                ResourceOptimizerConfig
	cpuCores           int
	memoryGB           float64
	currentCPUUsage    float64
	currentMemoryUsage float64
	limits             WorkerLimits
	logger             *slog.Logger
}

// WorkerLimits holds the calculated pool sizes.
type WorkerLimits struct {
	TaggerWorkers   int     `json:"tagger_workers"`
	AccountWorkers  int     `json:"account_workers"`
	MemoryThreshold float64 `json:"memory_threshold"`
	CPUThreshold    float64 `json:"cpu_threshold"`
}

// ResourceOptimizerConfig bounds the calculated pool sizes.
type ResourceOptimizerConfig struct {
	CPUThreshold    float64
	MemoryThreshold float64
	MinWorkers      int
	MaxWorkers      int
}

// NewResourceOptimizer inspects the host and calculates the initial limits.
func NewResourceOptimizer(config ResourceOptimizerConfig) *ResourceOptimizer {
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
		config.MaxWorkers = 16
	}
	if config.MaxWorkers < config.MinWorkers {
		config.MaxWorkers = config.MinWorkers
	}

	logger := telemetry.GetLogger()
	if logger == nil {
		logger = slog.Default()
	}

	ro := &ResourceOptimizer{
		cfg:      config,
		cpuCores: runtime.NumCPU(),
		logger:   logger,
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		ro.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		ro.logger.Warn("Could not get memory info, using default", "error", err)
		ro.memoryGB = 8.0
	}

	ro.recalculate()
	ro.logger.Info("Resource optimizer initialized",
		"cpu_cores", ro.cpuCores,
		"memory_gb", ro.memoryGB,
		"tagger_workers", ro.limits.TaggerWorkers)
	return ro
}

func (ro *ResourceOptimizer) recalculate() {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	baseWorkers := clampInt(ro.cpuCores*2, ro.cfg.MinWorkers, ro.cfg.MaxWorkers)

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

	workers := int(float64(baseWorkers) * memoryFactor * loadFactor)
	if workers < ro.cfg.MinWorkers {
		workers = ro.cfg.MinWorkers
	}

	ro.limits = WorkerLimits{
		TaggerWorkers:   workers,
		AccountWorkers:  max(1, workers/2),
		MemoryThreshold: ro.cfg.MemoryThreshold,
		CPUThreshold:    ro.cfg.CPUThreshold,
	}
}

// Limits returns the current pool sizes.
func (ro *ResourceOptimizer) Limits() WorkerLimits {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return ro.limits
}

// TaggerWorkers returns configured when positive, otherwise the calculated
// tagger pool size.
func (ro *ResourceOptimizer) TaggerWorkers(configured int) int {
	if configured > 0 {
		return configured
	}
	return ro.Limits().TaggerWorkers
}

// UpdateSystemMetrics samples host usage and recalculates the limits.
func (ro *ResourceOptimizer) UpdateSystemMetrics(ctx context.Context) error {
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}

	ro.mu.Lock()
	if len(cpuPercent) > 0 {
		ro.currentCPUUsage = cpuPercent[0]
	}
	ro.currentMemoryUsage = memInfo.UsedPercent
	ro.mu.Unlock()

	ro.recalculate()
	return nil
}

// SystemInfo reports the detected host figures for the health endpoint.
func (ro *ResourceOptimizer) SystemInfo() map[string]interface{} {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return map[string]interface{}{
		"cpu_cores":      ro.cpuCores,
		"memory_gb":      ro.memoryGB,
		"current_cpu":    ro.currentCPUUsage,
		"current_memory": ro.currentMemoryUsage,
		"goroutines":     runtime.NumGoroutine(),
		"limits":         ro.limits,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

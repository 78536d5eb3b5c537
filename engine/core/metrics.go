package core

import (
	"sync"
	"sync/atomic"
)

const LatencyAvgCount uint8 = 30

// PipelineMetrics is a point-in-time snapshot of the asset pipeline's
// health. Counters are eventually consistent; a brief stale read is fine,
// nothing uses them for correctness.
type PipelineMetrics struct {
	CacheHits      uint64
	CacheMisses    uint64
	HitRatio       float64
	Loads          uint64
	Fallbacks      uint64
	AvgLoadMS      float64
	PeakMemory     uint64
	CurrentMemory  uint64
	CurrentEntries int
}

// PerformanceMonitor tracks cache hit rate, load latency and memory peaks.
// Hit/miss/load counters are atomics so every system can record without
// contending on a lock; the latency window is mutex-guarded since it is
// only touched on the (comparatively rare) load path.
type PerformanceMonitor struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	loads     atomic.Uint64
	fallbacks atomic.Uint64

	mu                sync.Mutex
	latencyAvgCounter uint8
	latencyMS         [LatencyAvgCount]float64
	latencyAvg        float64
	windowFilled      bool

	peakMemory     atomic.Uint64
	currentMemory  atomic.Uint64
	currentEntries atomic.Int64
}

func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{}
}

func (pm *PerformanceMonitor) RecordHit() {
	pm.hits.Add(1)
}

func (pm *PerformanceMonitor) RecordMiss() {
	pm.misses.Add(1)
}

func (pm *PerformanceMonitor) RecordFallback() {
	pm.fallbacks.Add(1)
}

// RecordLoad folds a completed load's latency into the rolling window.
func (pm *PerformanceMonitor) RecordLoad(elapsedMS float64) {
	pm.loads.Add(1)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.latencyMS[pm.latencyAvgCounter] = elapsedMS
	if pm.latencyAvgCounter == LatencyAvgCount-1 {
		sum := 0.0
		for i := uint8(0); i < LatencyAvgCount; i++ {
			sum += pm.latencyMS[i]
		}
		pm.latencyAvg = sum / float64(LatencyAvgCount)
		pm.windowFilled = true
	} else if !pm.windowFilled {
		// Before the first full window, average over what we have.
		sum := 0.0
		for i := uint8(0); i <= pm.latencyAvgCounter; i++ {
			sum += pm.latencyMS[i]
		}
		pm.latencyAvg = sum / float64(pm.latencyAvgCounter+1)
	}
	pm.latencyAvgCounter++
	pm.latencyAvgCounter %= LatencyAvgCount
}

// Republish refreshes the memory gauges from the owning cache. Called on
// the orchestrator's fixed interval and immediately after user-visible
// cache mutations.
func (pm *PerformanceMonitor) Republish(memoryUsage uint64, entries int) {
	pm.currentMemory.Store(memoryUsage)
	pm.currentEntries.Store(int64(entries))
	for {
		peak := pm.peakMemory.Load()
		if memoryUsage <= peak || pm.peakMemory.CompareAndSwap(peak, memoryUsage) {
			break
		}
	}
}

func (pm *PerformanceMonitor) Snapshot() PipelineMetrics {
	hits := pm.hits.Load()
	misses := pm.misses.Load()

	pm.mu.Lock()
	avg := pm.latencyAvg
	pm.mu.Unlock()

	m := PipelineMetrics{
		CacheHits:      hits,
		CacheMisses:    misses,
		Loads:          pm.loads.Load(),
		Fallbacks:      pm.fallbacks.Load(),
		AvgLoadMS:      avg,
		PeakMemory:     pm.peakMemory.Load(),
		CurrentMemory:  pm.currentMemory.Load(),
		CurrentEntries: int(pm.currentEntries.Load()),
	}
	if total := hits + misses; total > 0 {
		m.HitRatio = float64(hits) / float64(total)
	}
	return m
}

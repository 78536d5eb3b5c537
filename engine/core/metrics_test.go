package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorHitRatio(t *testing.T) {
	pm := NewPerformanceMonitor()

	for i := 0; i < 3; i++ {
		pm.RecordHit()
	}
	pm.RecordMiss()

	m := pm.Snapshot()
	assert.Equal(t, uint64(3), m.CacheHits)
	assert.Equal(t, uint64(1), m.CacheMisses)
	assert.InDelta(t, 0.75, m.HitRatio, 1e-9)
}

func TestMonitorHitRatioEmpty(t *testing.T) {
	pm := NewPerformanceMonitor()
	assert.Zero(t, pm.Snapshot().HitRatio)
}

func TestMonitorLatencyPartialWindow(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.RecordLoad(10)
	pm.RecordLoad(20)

	m := pm.Snapshot()
	assert.Equal(t, uint64(2), m.Loads)
	assert.InDelta(t, 15.0, m.AvgLoadMS, 1e-9)
}

func TestMonitorLatencyFullWindow(t *testing.T) {
	pm := NewPerformanceMonitor()

	for i := uint8(0); i < LatencyAvgCount; i++ {
		pm.RecordLoad(float64(i))
	}

	// Average of 0..29 is 14.5.
	assert.InDelta(t, 14.5, pm.Snapshot().AvgLoadMS, 1e-9)
}

func TestMonitorFallbacks(t *testing.T) {
	pm := NewPerformanceMonitor()
	pm.RecordFallback()
	pm.RecordFallback()
	assert.Equal(t, uint64(2), pm.Snapshot().Fallbacks)
}

func TestMonitorRepublishTracksPeak(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.Republish(100, 2)
	pm.Republish(300, 5)
	pm.Republish(50, 1)

	m := pm.Snapshot()
	assert.Equal(t, uint64(50), m.CurrentMemory)
	assert.Equal(t, 1, m.CurrentEntries)
	assert.Equal(t, uint64(300), m.PeakMemory)
}

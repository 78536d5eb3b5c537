package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graphics.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, QualityMedium, cfg.Quality)
	assert.True(t, cfg.LOD.Enabled)
	assert.Len(t, cfg.LOD.Thresholds, 4)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
quality = "high"

[lod]
enabled = true
thresholds = [10.0, 20.0]
bias = 1.5
max_levels = 2

[mesh_cache]
memory_threshold_bytes = 1048576
max_entries = 50
max_age_seconds = 60
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, QualityHigh, cfg.Quality)
	assert.Equal(t, []float32{10, 20}, cfg.LOD.Thresholds)
	assert.Equal(t, float32(1.5), cfg.LOD.Bias)
	assert.Equal(t, uint64(1048576), cfg.MeshCache.MemoryThresholdBytes)
	assert.Equal(t, 50, cfg.MeshCache.MaxEntries)
	assert.Equal(t, time.Minute, cfg.MeshCache.MaxAge())

	// Sections absent from the file keep their defaults.
	assert.Equal(t, "assets", cfg.AssetBasePath)
	assert.Equal(t, 500, cfg.MaterialCache.MaxEntries)
}

func TestLoadPartialFile(t *testing.T) {
	path := writeConfig(t, `quality = "ultra"`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, QualityUltra, cfg.Quality)
	assert.Equal(t, []float32{25, 50, 100, 200}, cfg.LOD.Thresholds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadBadQuality(t *testing.T) {
	path := writeConfig(t, `quality = "extreme"`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsDescendingThresholds(t *testing.T) {
	cfg := Default()
	cfg.LOD.Thresholds = []float32{100, 50, 25}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadMaxLevels(t *testing.T) {
	cfg := Default()
	cfg.LOD.MaxLevels = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateDefaultsNonPositiveBias(t *testing.T) {
	cfg := Default()
	cfg.LOD.Bias = -2
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(1.0), cfg.LOD.Bias)
}

func TestQualityTierRoundTrip(t *testing.T) {
	tiers := []QualityTier{QualityLow, QualityMedium, QualityHigh, QualityUltra, QualityAdaptive}
	for _, tier := range tiers {
		parsed, err := ParseQuality(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	_, err := ParseQuality("bogus")
	assert.Error(t, err)
}

func TestSegmentCountsAscendWithQuality(t *testing.T) {
	assert.Less(t, QualityLow.SegmentCount(), QualityMedium.SegmentCount())
	assert.Less(t, QualityMedium.SegmentCount(), QualityHigh.SegmentCount())
	assert.Less(t, QualityHigh.SegmentCount(), QualityUltra.SegmentCount())
}

func TestMaxAgeFallback(t *testing.T) {
	c := CacheConfig{}
	assert.Equal(t, time.Hour, c.MaxAge())
}

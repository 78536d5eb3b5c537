package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/veilworld/engine/engine/core"
)

// QualityTier drives both procedural tessellation resolution and cache
// eviction aggressiveness.
type QualityTier uint8

const (
	QualityLow QualityTier = iota
	QualityMedium
	QualityHigh
	QualityUltra
	QualityAdaptive
)

func (q QualityTier) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	case QualityUltra:
		return "ultra"
	case QualityAdaptive:
		return "adaptive"
	}
	return "unknown"
}

// SegmentCount is the tessellation resolution for curved primitives at
// this tier.
func (q QualityTier) SegmentCount() int {
	switch q {
	case QualityLow:
		return 8
	case QualityMedium:
		return 16
	case QualityHigh:
		return 24
	case QualityUltra:
		return 32
	case QualityAdaptive:
		return 20
	}
	return 16
}

// CacheScale is the multiplier applied to the configured cache memory
// threshold for this tier. Higher tiers get more headroom before eviction.
func (q QualityTier) CacheScale() float64 {
	switch q {
	case QualityLow:
		return 0.5
	case QualityMedium:
		return 1.0
	case QualityHigh:
		return 1.5
	case QualityUltra:
		return 2.0
	case QualityAdaptive:
		return 1.0
	}
	return 1.0
}

func ParseQuality(s string) (QualityTier, error) {
	switch s {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	case "ultra":
		return QualityUltra, nil
	case "adaptive":
		return QualityAdaptive, nil
	}
	return QualityMedium, fmt.Errorf("unknown quality tier %q", s)
}

func (q QualityTier) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *QualityTier) UnmarshalText(text []byte) error {
	tier, err := ParseQuality(string(text))
	if err != nil {
		return err
	}
	*q = tier
	return nil
}

// LODConfig holds level-of-detail selection settings. Thresholds are view
// distances in ascending order; index i is the switch-over distance for
// LOD level i.
type LODConfig struct {
	Enabled bool `toml:"enabled"`
	// Ascending switch-over distances, one per LOD level.
	Thresholds []float32 `toml:"thresholds"`
	// Bias multiplies the viewer distance before threshold comparison;
	// values > 1 prefer coarser levels.
	Bias float32 `toml:"bias"`
	// MaxLevels bounds the LOD chain length, base level included.
	MaxLevels int `toml:"max_levels"`
}

// CacheConfig holds the bounds of a mesh or material cache instance.
type CacheConfig struct {
	MemoryThresholdBytes uint64 `toml:"memory_threshold_bytes"`
	MaxEntries           int    `toml:"max_entries"`
	MaxAgeSeconds        int    `toml:"max_age_seconds"`
}

// MaxAge is the entry age beyond which non-critical entries are swept.
func (c CacheConfig) MaxAge() time.Duration {
	if c.MaxAgeSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// GraphicsConfig is the consumed configuration surface of the pipeline.
type GraphicsConfig struct {
	Quality       QualityTier `toml:"quality"`
	AssetBasePath string      `toml:"asset_base_path"`
	LOD           LODConfig   `toml:"lod"`
	MeshCache     CacheConfig `toml:"mesh_cache"`
	MaterialCache CacheConfig `toml:"material_cache"`
}

// Default returns the configuration used when no file is provided.
func Default() *GraphicsConfig {
	return &GraphicsConfig{
		Quality:       QualityMedium,
		AssetBasePath: "assets",
		LOD: LODConfig{
			Enabled:    true,
			Thresholds: []float32{25, 50, 100, 200},
			Bias:       1.0,
			MaxLevels:  4,
		},
		MeshCache: CacheConfig{
			MemoryThresholdBytes: 256 * 1024 * 1024,
			MaxEntries:           1000,
			MaxAgeSeconds:        3600,
		},
		MaterialCache: CacheConfig{
			MemoryThresholdBytes: 16 * 1024 * 1024,
			MaxEntries:           500,
			MaxAgeSeconds:        3600,
		},
	}
}

// Load reads a TOML graphics configuration, overlaying the defaults so a
// partial file is valid.
func Load(path string) (*GraphicsConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graphics config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse graphics config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c *GraphicsConfig) Validate() error {
	if c.LOD.MaxLevels < 1 {
		return fmt.Errorf("lod.max_levels must be >= 1, got %d", c.LOD.MaxLevels)
	}
	if c.LOD.Bias <= 0 {
		core.LogWarn("lod.bias must be positive, defaulting to 1.0")
		c.LOD.Bias = 1.0
	}
	for i := 1; i < len(c.LOD.Thresholds); i++ {
		if c.LOD.Thresholds[i] < c.LOD.Thresholds[i-1] {
			return fmt.Errorf("lod.thresholds must be ascending, got %v", c.LOD.Thresholds)
		}
	}
	if c.MeshCache.MaxEntries < 1 {
		return fmt.Errorf("mesh_cache.max_entries must be >= 1, got %d", c.MeshCache.MaxEntries)
	}
	return nil
}

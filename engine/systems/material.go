package systems

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/veilworld/engine/engine/config"
	"github.com/veilworld/engine/engine/containers"
	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/math"
	"github.com/veilworld/engine/engine/resources"
)

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

// MaterialSystem resolves named materials from key=value .vmt files under
// <assets>/materials, backed by its own priority-tiered cache. A material
// that fails to load resolves to the default material; material-sourcing
// failures are never user-visible.
type MaterialSystem struct {
	basePath   string
	cache      *containers.Cache[*resources.MaterialResource]
	defaultMat *resources.MaterialResource
}

func NewMaterialSystem(cfg *config.GraphicsConfig) *MaterialSystem {
	ms := &MaterialSystem{
		basePath: cfg.AssetBasePath,
		cache: containers.NewCache[*resources.MaterialResource]("material", containers.Config{
			MemoryThresholdBytes: cfg.MaterialCache.MemoryThresholdBytes,
			MaxEntries:           cfg.MaterialCache.MaxEntries,
			MaxAge:               cfg.MaterialCache.MaxAge(),
		}),
		defaultMat: &resources.MaterialResource{
			Name:          DefaultMaterialName,
			DiffuseColour: math.Vec4{X: 1, Y: 1, Z: 1, W: 1},
			Shininess:     8.0,
		},
	}
	// The default material is the universal fallback; it must survive
	// every automatic cleanup pass.
	ms.cache.Store(DefaultMaterialName, ms.defaultMat, containers.PriorityCritical)
	return ms
}

// Default returns the fallback material.
func (ms *MaterialSystem) Default() *resources.MaterialResource {
	return ms.defaultMat
}

// Acquire resolves a material by name, loading and caching it on miss.
func (ms *MaterialSystem) Acquire(name string) *resources.MaterialResource {
	if name == "" || name == DefaultMaterialName {
		return ms.defaultMat
	}
	if mat, ok := ms.cache.Get(name); ok {
		return mat
	}

	mat, err := ms.loadFromFile(name)
	if err != nil {
		core.LogWarn("material '%s' failed to load (%s), using default", name, err.Error())
		return ms.defaultMat
	}
	ms.cache.Store(name, mat, containers.PriorityNormal)
	return mat
}

// Release drops a material from the cache. The default material ignores
// release.
func (ms *MaterialSystem) Release(name string) {
	if name == DefaultMaterialName {
		return
	}
	ms.cache.Remove(name)
}

// OptimizeForQuality rescales the material cache for the tier.
func (ms *MaterialSystem) OptimizeForQuality(q config.QualityTier) {
	ms.cache.OptimizeForQuality(q.CacheScale())
}

func (ms *MaterialSystem) Stats() containers.Stats {
	return ms.cache.Stats()
}

func (ms *MaterialSystem) loadFromFile(name string) (*resources.MaterialResource, error) {
	path := filepath.Join(ms.basePath, "materials", name+".vmt")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", core.ErrLoadingFailed, err)
	}
	defer file.Close()

	mat := &resources.MaterialResource{
		Name:          name,
		DiffuseColour: math.Vec4{X: 1, Y: 1, Z: 1, W: 1},
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			core.LogDebug("material %s: skipping invalid line: %s", name, line)
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "diffuse_colour":
			colour, err := parseVec4(value)
			if err != nil {
				return nil, fmt.Errorf("%w: diffuse_colour: %s", core.ErrInvalidFormat, err)
			}
			mat.DiffuseColour = colour
		case "shininess":
			f, err := strconv.ParseFloat(value, 32)
			if err != nil || f < 0 {
				return nil, fmt.Errorf("%w: shininess %q", core.ErrInvalidFormat, value)
			}
			mat.Shininess = float32(f)
		case "diffuse_map_name":
			mat.DiffuseMapName = value
		case "specular_map_name":
			mat.SpecularMapName = value
		case "normal_map_name":
			mat.NormalMapName = value
		default:
			core.LogDebug("material %s: unknown key '%s', skipping", name, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrLoadingFailed, err)
	}
	return mat, nil
}

func parseVec4(value string) (math.Vec4, error) {
	fields := strings.Fields(value)
	if len(fields) != 4 {
		return math.Vec4{}, fmt.Errorf("expected 4 values, got %d", len(fields))
	}
	var out [4]float32
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return math.Vec4{}, fmt.Errorf("bad component %q", f)
		}
		out[i] = float32(v)
	}
	return math.Vec4{X: out[0], Y: out[1], Z: out[2], W: out[3]}, nil
}

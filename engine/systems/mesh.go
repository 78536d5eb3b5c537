package systems

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	stdmath "math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilworld/engine/engine/assets"
	"github.com/veilworld/engine/engine/config"
	"github.com/veilworld/engine/engine/containers"
	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/math"
	"github.com/veilworld/engine/engine/resources"
)

// MeshSystem is the public facade of the asset pipeline. It composes the
// loader, cache, LOD and procedural paths, deduplicates concurrent loads
// per cache key, and substitutes procedural fallbacks so every request
// for a named asset resolves to some renderable mesh.
type MeshSystem struct {
	cfg       *config.GraphicsConfig
	assets    *assets.AssetManager
	geometry  *GeometrySystem
	lod       *LODSystem
	materials *MaterialSystem
	jobs      *JobSystem
	cache     *containers.Cache[*resources.MeshResource]
	monitor   *core.PerformanceMonitor

	mu       sync.Mutex
	inflight map[string]*flight
	closed   bool

	done chan struct{}
}

// flight is the single shared task for one cache key. Every waiter
// observes the identical outcome.
type flight struct {
	id   string
	once sync.Once
	done chan struct{}
	mesh *resources.MeshResource
	err  error
}

func (fl *flight) settle(mesh *resources.MeshResource, err error) {
	fl.once.Do(func() {
		fl.mesh = mesh
		fl.err = err
		close(fl.done)
	})
}

// MetricsInterval is how often the performance monitor's memory gauges
// are recomputed from the cache.
const MetricsInterval = time.Second

func NewMeshSystem(
	cfg *config.GraphicsConfig,
	am *assets.AssetManager,
	geometry *GeometrySystem,
	lod *LODSystem,
	materials *MaterialSystem,
	jobs *JobSystem,
	monitor *core.PerformanceMonitor,
) *MeshSystem {
	ms := &MeshSystem{
		cfg:       cfg,
		assets:    am,
		geometry:  geometry,
		lod:       lod,
		materials: materials,
		jobs:      jobs,
		cache: containers.NewCache[*resources.MeshResource]("mesh", containers.Config{
			MemoryThresholdBytes: cfg.MeshCache.MemoryThresholdBytes,
			MaxEntries:           cfg.MeshCache.MaxEntries,
			MaxAge:               cfg.MeshCache.MaxAge(),
		}),
		monitor:  monitor,
		inflight: make(map[string]*flight),
		done:     make(chan struct{}),
	}
	go ms.metricsLoop()
	return ms
}

// LoadMesh resolves a named or URL mesh source at the given LOD level.
// Asset-sourcing failures are recoverable: the result falls back to a
// procedurally generated stand-in and the error surfaces only in logs
// and metrics. The returned error is non-nil only on context
// cancellation or when the pipeline has been closed or cleared while
// the load was in flight.
func (ms *MeshSystem) LoadMesh(ctx context.Context, name string, lodLevel int) (*resources.MeshResource, error) {
	key := meshKey(name, lodLevel)
	return ms.resolve(ctx, key, containers.PriorityNormal, func() (*resources.MeshResource, error) {
		return ms.loadOrFallback(name, lodLevel), nil
	})
}

// Generate resolves a procedural mesh, cached under the parameter hash.
func (ms *MeshSystem) Generate(ctx context.Context, params resources.ProceduralParams) (*resources.MeshResource, error) {
	return ms.resolve(ctx, params.CacheKey(), containers.PriorityNormal, func() (*resources.MeshResource, error) {
		return ms.geometry.Generate(params), nil
	})
}

// LoadMeshWithLOD loads the base mesh and generates its full LOD chain,
// publishing the variants into the cache's LOD sub-store. A partial
// chain is a valid result.
func (ms *MeshSystem) LoadMeshWithLOD(ctx context.Context, name string) ([]LODLevel, error) {
	base, err := ms.LoadMesh(ctx, name, 0)
	if err != nil {
		return nil, err
	}

	chain := ms.lod.GenerateLODChain(base)
	baseKey := meshKey(name, 0)
	for _, level := range chain[1:] {
		ms.cache.StoreLOD(baseKey, level.Level, level.Mesh)
	}
	return chain, nil
}

// CreateTerrainMesh meshes a heightmap grid. The cache key hashes the
// grid contents plus scaling so equivalent terrain requests share a slot.
func (ms *MeshSystem) CreateTerrainMesh(ctx context.Context, heights [][]float32, scale, heightScale float32) (*resources.MeshResource, error) {
	key := terrainKey(heights, scale, heightScale)
	return ms.resolve(ctx, key, containers.PriorityHigh, func() (*resources.MeshResource, error) {
		return ms.geometry.GenerateTerrain(heights, scale, heightScale), nil
	})
}

// CreateAvatarMesh builds the humanoid base mesh for an appearance.
// Avatars are pinned at high priority; a missing avatar is the most
// user-visible failure the pipeline can have.
func (ms *MeshSystem) CreateAvatarMesh(ctx context.Context, appearance resources.AvatarAppearance) (*resources.MeshResource, error) {
	params := resources.HumanoidParams{Height: appearance.Height, Width: appearance.Width}
	return ms.resolve(ctx, params.CacheKey(), containers.PriorityHigh, func() (*resources.MeshResource, error) {
		return ms.geometry.Generate(params), nil
	})
}

// LoadMaterial resolves a named material; failures degrade to the
// default material.
func (ms *MeshSystem) LoadMaterial(ctx context.Context, name string) (*resources.MaterialResource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ms.materials.Acquire(name), nil
}

// SelectLODLevel picks the LOD index for a viewer distance and mesh
// bounds.
func (ms *MeshSystem) SelectLODLevel(distance float32, bounds math.Extents3D) int {
	return ms.lod.SelectLODLevel(distance, bounds)
}

// SetQuality applies a quality tier change: generation resolution and
// cache thresholds adjust, and the caches re-optimize rather than clear,
// avoiding a reload stall.
func (ms *MeshSystem) SetQuality(q config.QualityTier) {
	ms.mu.Lock()
	ms.cfg.Quality = q
	ms.mu.Unlock()
	ms.geometry.SetQuality(q)
	ms.cache.OptimizeForQuality(q.CacheScale())
	ms.materials.OptimizeForQuality(q)
	core.LogInfo("quality tier set to %s", q)
}

// ClearCaches drops everything, cancels all in-flight loads (their
// waiters receive a failure rather than hanging) and republishes metrics
// immediately.
func (ms *MeshSystem) ClearCaches() {
	ms.mu.Lock()
	for key, fl := range ms.inflight {
		fl.settle(nil, fmt.Errorf("%w: cache cleared", core.ErrPipelineClosed))
		delete(ms.inflight, key)
	}
	ms.mu.Unlock()

	ms.cache.Clear()
	ms.monitor.Republish(ms.cache.MemoryUsage(), ms.cache.Len())
	core.LogInfo("mesh caches cleared")
}

// Metrics returns the monitor's current snapshot.
func (ms *MeshSystem) Metrics() core.PipelineMetrics {
	return ms.monitor.Snapshot()
}

// CacheStats returns the mesh cache's aggregate view.
func (ms *MeshSystem) CacheStats() containers.Stats {
	return ms.cache.Stats()
}

// Close cancels in-flight work and stops the metrics loop. The job
// system and asset manager are owned by the system manager and shut down
// there.
func (ms *MeshSystem) Close() {
	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		return
	}
	ms.closed = true
	for key, fl := range ms.inflight {
		fl.settle(nil, core.ErrPipelineClosed)
		delete(ms.inflight, key)
	}
	ms.mu.Unlock()
	close(ms.done)
}

// resolve implements the shared load path: cache lookup, in-flight
// deduplication, job submission, waiter fan-out. At most one task runs
// per cache key at any time.
func (ms *MeshSystem) resolve(ctx context.Context, key string, priority containers.Priority, run func() (*resources.MeshResource, error)) (*resources.MeshResource, error) {
	if mesh, ok := ms.cache.Get(key); ok {
		ms.monitor.RecordHit()
		return mesh, nil
	}
	ms.monitor.RecordMiss()

	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		return nil, core.ErrPipelineClosed
	}
	fl, ok := ms.inflight[key]
	created := false
	if !ok {
		fl = &flight{id: uuid.NewString(), done: make(chan struct{})}
		ms.inflight[key] = fl
		created = true
	}
	ms.mu.Unlock()

	if created {
		core.LogDebug("task %s started for key %s", fl.id, key)
		ms.jobs.Submit(Task{
			ID:      fl.id,
			Execute: run,
			OnComplete: func(mesh *resources.MeshResource, err error) {
				ms.mu.Lock()
				// Only the still-registered flight publishes; a clear
				// mid-flight already failed the waiters and the stale
				// result must not repopulate the cache.
				current := ms.inflight[key] == fl
				if current {
					delete(ms.inflight, key)
				}
				ms.mu.Unlock()

				if current && err == nil && mesh != nil {
					ms.cache.Store(key, mesh, priority)
				}
				fl.settle(mesh, err)
			},
		})
	}

	select {
	case <-fl.done:
		return fl.mesh, fl.err
	case <-ctx.Done():
		// Abandoning one waiter leaves the shared task running; its
		// result still lands in the cache for the others.
		return nil, ctx.Err()
	}
}

// loadOrFallback is the miss path: detect format, dispatch the loader,
// and on any sourcing failure substitute a procedural stand-in chosen by
// a keyword heuristic over the requested name.
func (ms *MeshSystem) loadOrFallback(name string, lodLevel int) *resources.MeshResource {
	clock := core.NewClock()
	clock.Start()

	format := ms.assets.DetectFormat(name)
	mesh, err := ms.assets.LoadMesh(name, format, 0)
	if err != nil {
		ms.monitor.RecordFallback()
		core.LogInfo("asset '%s' unavailable (%s), generating procedural fallback", name, err.Error())
		mesh = ms.geometry.Generate(fallbackParams(name))
	}

	if lodLevel > 0 {
		if simplified, lodErr := ms.lod.GenerateLOD(mesh, lodLevel); lodErr == nil {
			mesh = simplified
		} else {
			core.LogWarn("LOD %d for '%s' not generated: %s", lodLevel, name, lodErr.Error())
		}
	}

	clock.Update()
	ms.monitor.RecordLoad(clock.ElapsedMS())
	return mesh
}

func (ms *MeshSystem) metricsLoop() {
	ticker := time.NewTicker(MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ms.monitor.Republish(ms.cache.MemoryUsage(), ms.cache.Len())
		case <-ms.done:
			return
		}
	}
}

func meshKey(name string, lodLevel int) string {
	return fmt.Sprintf("mesh:%s:lod%d", name, lodLevel)
}

func terrainKey(heights [][]float32, scale, heightScale float32) string {
	h := fnv.New64a()
	var buf [4]byte
	put := func(v float32) {
		binary.LittleEndian.PutUint32(buf[:], stdmath.Float32bits(v))
		h.Write(buf[:])
	}
	put(scale)
	put(heightScale)
	for _, row := range heights {
		for _, v := range row {
			put(v)
		}
	}
	return fmt.Sprintf("terrain:%d:%016x", len(heights), h.Sum64())
}

// fallbackParams maps a requested asset name to the closest procedural
// stand-in. Seeded shapes derive their seed from the name so repeated
// requests stay stable.
func fallbackParams(name string) resources.ProceduralParams {
	lower := strings.ToLower(name)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("avatar", "player", "npc", "character", "human"):
		return resources.HumanoidParams{Height: 1.8, Width: 0.5}
	case has("tree", "bush", "sapling"):
		return resources.TreeParams{TrunkHeight: 2.0, TrunkRadius: 0.2, CrownRadius: 1.0}
	case has("crystal", "gem", "shard"):
		return resources.CrystalParams{Sides: 6, Radius: 0.3, Height: 1.0}
	case has("rock", "stone", "boulder"):
		return resources.RockParams{Radius: 0.6, Roughness: 0.3, Seed: nameSeed(lower)}
	case has("flower", "plant", "blossom"):
		return resources.FlowerParams{Petals: 5, PetalLength: 0.3, Height: 0.3}
	case has("house", "building", "tower", "hut"):
		return resources.BuildingParams{Floors: 3, Width: 6, Depth: 6, FloorHeight: 3}
	case has("terrain", "ground", "land"):
		return resources.TerrainParams{GridSize: 33, Scale: 1, HeightScale: 4, Seed: nameSeed(lower)}
	default:
		return resources.BoxParams{Width: 1, Height: 1, Depth: 1}
	}
}

func nameSeed(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

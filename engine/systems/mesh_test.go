package systems

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilworld/engine/engine/config"
	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/math"
	"github.com/veilworld/engine/engine/resources"
)

func newPipeline(t *testing.T) *SystemManager {
	t.Helper()
	cfg := config.Default()
	cfg.AssetBasePath = t.TempDir()
	sm, err := NewSystemManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sm.Shutdown() })
	return sm
}

// gatedLoader blocks every load on a gate channel and counts the loads
// that actually ran.
type gatedLoader struct {
	gate  chan struct{}
	loads atomic.Int32
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gate: make(chan struct{})}
}

func (l *gatedLoader) Load(path string, lodLevel int) (*resources.MeshResource, error) {
	<-l.gate
	l.loads.Add(1)
	return testTriangle("loaded"), nil
}

func (l *gatedLoader) Capabilities() resources.Capabilities {
	return resources.CapNormals | resources.CapUVs
}

func testTriangle(name string) *resources.MeshResource {
	vertices := []math.Vertex3D{
		{Position: math.NewVec3(0, 0, 0)},
		{Position: math.NewVec3(1, 0, 0)},
		{Position: math.NewVec3(0, 1, 0)},
	}
	return resources.NewMeshResource(name, vertices, []uint32{0, 1, 2}, false, false)
}

func TestLoadMeshDeduplicatesConcurrentRequests(t *testing.T) {
	sm := newPipeline(t)
	loader := newGatedLoader()
	sm.Assets.RegisterLoader(resources.FormatOBJ, loader)

	const n = 16
	results := make([]*resources.MeshResource, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = sm.Mesh.LoadMesh(context.Background(), "shared_asset", 0)
		}(i)
	}

	// Let every request either create or join the single flight before
	// the load is allowed to finish.
	time.Sleep(50 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	assert.Equal(t, int32(1), loader.loads.Load(), "one underlying load for all concurrent requests")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i], "every waiter observes the identical result")
	}
}

func TestLoadMeshSecondCallHitsCache(t *testing.T) {
	sm := newPipeline(t)
	loader := newGatedLoader()
	close(loader.gate)
	sm.Assets.RegisterLoader(resources.FormatOBJ, loader)

	first, err := sm.Mesh.LoadMesh(context.Background(), "cached_asset", 0)
	require.NoError(t, err)
	second, err := sm.Mesh.LoadMesh(context.Background(), "cached_asset", 0)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), loader.loads.Load())
	assert.GreaterOrEqual(t, sm.Mesh.Metrics().CacheHits, uint64(1))
}

func TestLoadMeshFallsBackToProcedural(t *testing.T) {
	sm := newPipeline(t)

	mesh, err := sm.Mesh.LoadMesh(context.Background(), "no_such_asset", 0)
	require.NoError(t, err, "sourcing failures must not surface to the caller")
	require.NotNil(t, mesh)

	assert.Equal(t, "procedural_box", mesh.Name)
	assert.NotZero(t, mesh.VertexCount())
	assert.GreaterOrEqual(t, sm.Mesh.Metrics().Fallbacks, uint64(1))
}

func TestLoadMeshFallbackKeywords(t *testing.T) {
	sm := newPipeline(t)

	cases := map[string]string{
		"avatar_base":   "procedural_humanoid",
		"village_tree":  "procedural_tree",
		"crystal_shard": "procedural_crystal",
		"mossy_rock":    "procedural_rock",
		"red_flower":    "procedural_flower",
		"tall_tower":    "procedural_building",
		"northern_land": "procedural_terrain",
		"unnamed_thing": "procedural_box",
	}
	for name, want := range cases {
		mesh, err := sm.Mesh.LoadMesh(context.Background(), name, 0)
		require.NoError(t, err, name)
		assert.Equal(t, want, mesh.Name, name)
	}
}

func TestLoadMeshFromFile(t *testing.T) {
	sm := newPipeline(t)
	dir := filepath.Join(sm.Config.AssetBasePath, "meshes")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	obj := `
v -1 -1 -1
v 1 -1 -1
v 1 1 -1
v -1 1 -1
v -1 -1 1
v 1 -1 1
v 1 1 1
v -1 1 1
f 1 2 3 4
f 5 8 7 6
f 1 5 6 2
f 2 6 7 3
f 3 7 8 4
f 5 1 4 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cube.obj"), []byte(obj), 0o644))

	mesh, err := sm.Mesh.LoadMesh(context.Background(), "cube", 0)
	require.NoError(t, err)

	assert.Equal(t, 8, mesh.VertexCount())
	assert.Equal(t, 12, mesh.TriangleCount())
	assert.Zero(t, sm.Mesh.Metrics().Fallbacks)
}

func TestLoadMeshContextCanceled(t *testing.T) {
	sm := newPipeline(t)
	loader := newGatedLoader()
	sm.Assets.RegisterLoader(resources.FormatOBJ, loader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sm.Mesh.LoadMesh(ctx, "slow_asset", 0)
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned flight still completes and publishes for others.
	close(loader.gate)
	mesh, err := sm.Mesh.LoadMesh(context.Background(), "slow_asset", 0)
	require.NoError(t, err)
	assert.NotNil(t, mesh)
}

func TestClearCachesFailsInFlightWaiters(t *testing.T) {
	sm := newPipeline(t)
	loader := newGatedLoader()
	sm.Assets.RegisterLoader(resources.FormatOBJ, loader)

	errCh := make(chan error, 1)
	go func() {
		_, err := sm.Mesh.LoadMesh(context.Background(), "doomed_asset", 0)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	sm.Mesh.ClearCaches()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, core.ErrPipelineClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter hung after ClearCaches")
	}

	// The stale task finishes after the clear; its result must not
	// repopulate the cache.
	close(loader.gate)
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, sm.Mesh.CacheStats().Entries)
}

func TestGenerateCachesByParamKey(t *testing.T) {
	sm := newPipeline(t)

	a, err := sm.Mesh.Generate(context.Background(), resources.SphereParams{Radius: 1})
	require.NoError(t, err)
	b, err := sm.Mesh.Generate(context.Background(), resources.SphereParams{Radius: 1})
	require.NoError(t, err)
	c, err := sm.Mesh.Generate(context.Background(), resources.SphereParams{Radius: 2})
	require.NoError(t, err)

	assert.Same(t, a, b, "equal parameters share a cache slot")
	assert.NotSame(t, a, c)
}

func TestCreateTerrainMeshDeduplicatesEqualGrids(t *testing.T) {
	sm := newPipeline(t)

	grid := func() [][]float32 {
		return [][]float32{
			{0, 0.5, 0},
			{0.5, 1, 0.5},
			{0, 0.5, 0},
		}
	}
	a, err := sm.Mesh.CreateTerrainMesh(context.Background(), grid(), 1, 2)
	require.NoError(t, err)
	b, err := sm.Mesh.CreateTerrainMesh(context.Background(), grid(), 1, 2)
	require.NoError(t, err)
	assert.Same(t, a, b, "identical grid contents share a cache slot")

	other := grid()
	other[1][1] = 2
	c, err := sm.Mesh.CreateTerrainMesh(context.Background(), other, 1, 2)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestCreateAvatarMesh(t *testing.T) {
	sm := newPipeline(t)

	mesh, err := sm.Mesh.CreateAvatarMesh(context.Background(), resources.AvatarAppearance{Height: 1.8, Width: 0.5})
	require.NoError(t, err)

	size := mesh.Bounds.Size()
	assert.InDelta(t, 1.8, float64(size.Y), 1e-4)
	assert.InDelta(t, 0.5, float64(size.X), 1e-4)
}

func TestLoadMeshWithLOD(t *testing.T) {
	sm := newPipeline(t)

	chain, err := sm.Mesh.LoadMeshWithLOD(context.Background(), "village_tree")
	require.NoError(t, err)
	require.NotEmpty(t, chain)

	assert.Equal(t, 0, chain[0].Level)
	assert.LessOrEqual(t, len(chain), sm.Config.LOD.MaxLevels)
	for i := 1; i < len(chain); i++ {
		assert.LessOrEqual(t, chain[i].VertexCount, chain[i-1].VertexCount)
	}
}

func TestSetQualityKeepsCacheWarm(t *testing.T) {
	sm := newPipeline(t)

	warm, err := sm.Mesh.Generate(context.Background(), resources.SphereParams{Radius: 1})
	require.NoError(t, err)

	sm.Mesh.SetQuality(config.QualityUltra)

	// The warm entry survives the quality change.
	again, err := sm.Mesh.Generate(context.Background(), resources.SphereParams{Radius: 1})
	require.NoError(t, err)
	assert.Same(t, warm, again)

	// New generations pick up the new tessellation resolution.
	fresh, err := sm.Mesh.Generate(context.Background(), resources.SphereParams{Radius: 3})
	require.NoError(t, err)
	assert.Equal(t, 33*33, fresh.VertexCount())
}

func TestCloseRejectsNewWork(t *testing.T) {
	cfg := config.Default()
	cfg.AssetBasePath = t.TempDir()
	sm, err := NewSystemManager(cfg)
	require.NoError(t, err)
	require.NoError(t, sm.Shutdown())

	_, err = sm.Mesh.LoadMesh(context.Background(), "after_close", 0)
	assert.ErrorIs(t, err, core.ErrPipelineClosed)
}

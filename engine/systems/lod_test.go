package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilworld/engine/engine/config"
	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/math"
	"github.com/veilworld/engine/engine/resources"
)

func lodFixture(t *testing.T) (*LODSystem, *resources.MeshResource) {
	t.Helper()
	cfg := config.Default()
	gs := NewGeometrySystem(cfg)
	base := gs.Generate(resources.SphereParams{Radius: 2})
	require.NotZero(t, base.VertexCount())
	return NewLODSystem(cfg), base
}

func TestGenerateLODReducesVertexCount(t *testing.T) {
	ls, base := lodFixture(t)

	lod, err := ls.GenerateLOD(base, 1)
	require.NoError(t, err)

	assert.Less(t, lod.VertexCount(), base.VertexCount())
	assert.Equal(t, 1, lod.LODLevel)
	assert.Equal(t, base.Name+"_lod1", lod.Name)
}

func TestGenerateLODInvalidLevels(t *testing.T) {
	ls, base := lodFixture(t)

	// Valid levels are [1, MaxLevels); the default MaxLevels is 4.
	for _, level := range []int{-1, 0, 4, 5} {
		_, err := ls.GenerateLOD(base, level)
		assert.ErrorIs(t, err, core.ErrInvalidLODLevel, "level %d", level)
	}
}

func TestGenerateLODEmptyBase(t *testing.T) {
	ls, _ := lodFixture(t)

	_, err := ls.GenerateLOD(nil, 1)
	assert.ErrorIs(t, err, core.ErrNoMeshFound)

	empty := resources.NewMeshResource("empty", nil, nil, false, false)
	_, err = ls.GenerateLOD(empty, 1)
	assert.ErrorIs(t, err, core.ErrNoMeshFound)
}

func TestGenerateLODPreservesBoundsApproximately(t *testing.T) {
	ls, base := lodFixture(t)

	lod, err := ls.GenerateLOD(base, 2)
	require.NoError(t, err)

	// Clustering keeps vertices within their original cells, so the
	// bounds cannot grow.
	baseR := base.Bounds.Radius()
	lodR := lod.Bounds.Radius()
	assert.LessOrEqual(t, lodR, baseR+1e-4)
	assert.Greater(t, lodR, baseR*0.5)
}

func TestGenerateLODChain(t *testing.T) {
	ls, base := lodFixture(t)

	chain := ls.GenerateLODChain(base)
	require.NotEmpty(t, chain)

	assert.Equal(t, 0, chain[0].Level)
	assert.Same(t, base, chain[0].Mesh)
	assert.LessOrEqual(t, len(chain), 4)

	for i := 1; i < len(chain); i++ {
		assert.Equal(t, i, chain[i].Level)
		assert.LessOrEqual(t, chain[i].VertexCount, chain[i-1].VertexCount,
			"vertex counts must not increase along the chain")
	}
}

func TestSelectLODLevelThresholds(t *testing.T) {
	cfg := config.Default() // thresholds 25/50/100/200
	ls := NewLODSystem(cfg)
	unit := math.Extents3D{Min: math.NewVec3(-0.5, -0.5, -0.5), Max: math.NewVec3(0.5, 0.5, 0.5)}

	assert.Equal(t, 0, ls.SelectLODLevel(10, unit))
	assert.Equal(t, 0, ls.SelectLODLevel(25, unit))
	assert.Equal(t, 1, ls.SelectLODLevel(30, unit))
	assert.Equal(t, 2, ls.SelectLODLevel(80, unit))
	assert.Equal(t, 3, ls.SelectLODLevel(150, unit))
}

func TestSelectLODLevelBeyondLastThreshold(t *testing.T) {
	cfg := config.Default()
	ls := NewLODSystem(cfg)
	unit := math.Extents3D{Min: math.NewVec3(-0.5, -0.5, -0.5), Max: math.NewVec3(0.5, 0.5, 0.5)}

	assert.Equal(t, 3, ls.SelectLODLevel(10000, unit))
}

func TestSelectLODLevelDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.LOD.Enabled = false
	ls := NewLODSystem(cfg)

	assert.Equal(t, 0, ls.SelectLODLevel(10000, math.Extents3D{}))
}

func TestSelectLODLevelBias(t *testing.T) {
	cfg := config.Default()
	cfg.LOD.Bias = 2.0
	ls := NewLODSystem(cfg)
	unit := math.Extents3D{Min: math.NewVec3(-0.5, -0.5, -0.5), Max: math.NewVec3(0.5, 0.5, 0.5)}

	// 30 * 2 = 60, past the second threshold.
	assert.Equal(t, 2, ls.SelectLODLevel(30, unit))
}

func TestSelectLODLevelLargeObjectsHoldDetail(t *testing.T) {
	cfg := config.Default()
	ls := NewLODSystem(cfg)

	// Radius well above 1 divides the effective distance.
	big := math.Extents3D{Min: math.NewVec3(-10, -10, -10), Max: math.NewVec3(10, 10, 10)}
	unit := math.Extents3D{Min: math.NewVec3(-0.5, -0.5, -0.5), Max: math.NewVec3(0.5, 0.5, 0.5)}

	assert.Equal(t, 3, ls.SelectLODLevel(150, unit))
	assert.Equal(t, 0, ls.SelectLODLevel(150, big))
}

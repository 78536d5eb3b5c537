package systems

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/veilworld/engine/engine/config"
	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/math"
	"github.com/veilworld/engine/engine/resources"
)

// LODLevel describes one entry of a generated LOD chain.
type LODLevel struct {
	Level       int
	VertexCount int
	// Distance is the switch-over threshold configured for this level.
	Distance float32
	Mesh     *resources.MeshResource
}

// LODSystem generates reduced-detail variants of meshes and selects the
// appropriate level for a viewer distance.
type LODSystem struct {
	cfg *config.GraphicsConfig
}

func NewLODSystem(cfg *config.GraphicsConfig) *LODSystem {
	return &LODSystem{cfg: cfg}
}

// GenerateLOD decimates the base mesh to level's budget, an exponential
// halving per level: target factor 0.5^level.
func (ls *LODSystem) GenerateLOD(base *resources.MeshResource, level int) (*resources.MeshResource, error) {
	if level <= 0 || level >= ls.cfg.LOD.MaxLevels {
		return nil, fmt.Errorf("%w: %d (valid range [1, %d))", core.ErrInvalidLODLevel, level, ls.cfg.LOD.MaxLevels)
	}
	if base == nil || base.VertexCount() == 0 {
		return nil, fmt.Errorf("%w: empty base mesh", core.ErrNoMeshFound)
	}

	factor := math32.Pow(0.5, float32(level))
	return ls.simplify(base, factor, level), nil
}

// GenerateLODChain builds [base, lod1, ..., lod(max-1)]. A failing
// intermediate level truncates the chain rather than failing it; a
// partial chain is a valid result.
func (ls *LODSystem) GenerateLODChain(base *resources.MeshResource) []LODLevel {
	chain := []LODLevel{{
		Level:       0,
		VertexCount: base.VertexCount(),
		Distance:    ls.threshold(0),
		Mesh:        base,
	}}

	for level := 1; level < ls.cfg.LOD.MaxLevels; level++ {
		mesh, err := ls.GenerateLOD(base, level)
		if err != nil {
			core.LogWarn("LOD chain for %s truncated at level %d: %s", base.Name, level, err.Error())
			break
		}
		chain = append(chain, LODLevel{
			Level:       level,
			VertexCount: mesh.VertexCount(),
			Distance:    ls.threshold(level),
			Mesh:        mesh,
		})
	}
	return chain
}

// SelectLODLevel returns 0 (full detail) when LOD is disabled; otherwise
// the smallest index whose configured threshold covers the bias-adjusted
// distance, or the coarsest level when no threshold is met. Distance is
// additionally scaled down by the bounding radius for objects larger
// than a unit sphere, so big objects hold detail longer.
func (ls *LODSystem) SelectLODLevel(distance float32, bounds math.Extents3D) int {
	if !ls.cfg.LOD.Enabled || len(ls.cfg.LOD.Thresholds) == 0 {
		return 0
	}

	adjusted := distance * ls.cfg.LOD.Bias
	if r := bounds.Radius(); r > 1 {
		adjusted /= r
	}

	for i, d := range ls.cfg.LOD.Thresholds {
		if adjusted <= d {
			return i
		}
	}
	return len(ls.cfg.LOD.Thresholds) - 1
}

func (ls *LODSystem) threshold(level int) float32 {
	if level < len(ls.cfg.LOD.Thresholds) {
		return ls.cfg.LOD.Thresholds[level]
	}
	if n := len(ls.cfg.LOD.Thresholds); n > 0 {
		return ls.cfg.LOD.Thresholds[n-1]
	}
	return 0
}

// simplify reduces the mesh by uniform vertex clustering: vertices snap
// to a grid sized from the bounds and the target factor, clusters weld to
// their averaged position, and degenerate triangles drop out. Bounds stay
// within one grid cell of the original. Surface vertex counts scale with
// the square of the grid resolution, hence the square root sizing.
func (ls *LODSystem) simplify(base *resources.MeshResource, factor float32, level int) *resources.MeshResource {
	target := float32(base.VertexCount()) * factor
	res := int(math32.Sqrt(target))
	if res < 2 {
		res = 2
	}

	size := base.Bounds.Size()
	cell := math.NewVec3(
		math32.Max(size.X, math.K_FLOAT_EPSILON)/float32(res),
		math32.Max(size.Y, math.K_FLOAT_EPSILON)/float32(res),
		math32.Max(size.Z, math.K_FLOAT_EPSILON)/float32(res),
	)

	type cluster struct {
		index uint32
		sum   math.Vec3
		nsum  math.Vec3
		uv    math.Vec2
		count int
	}

	clusters := make(map[[3]int32]*cluster)
	remap := make([]uint32, base.VertexCount())
	var order [][3]int32

	cellOf := func(p math.Vec3) [3]int32 {
		rel := p.Sub(base.Bounds.Min)
		return [3]int32{
			int32(rel.X / cell.X),
			int32(rel.Y / cell.Y),
			int32(rel.Z / cell.Z),
		}
	}

	for i, v := range base.Vertices {
		key := cellOf(v.Position)
		c, ok := clusters[key]
		if !ok {
			c = &cluster{index: uint32(len(order))}
			clusters[key] = c
			order = append(order, key)
			c.uv = v.Texcoord
		}
		c.sum = c.sum.Add(v.Position)
		c.nsum = c.nsum.Add(v.Normal)
		c.count++
		remap[i] = c.index
	}

	vertices := make([]math.Vertex3D, len(order))
	for _, key := range order {
		c := clusters[key]
		inv := 1.0 / float32(c.count)
		vertices[c.index] = math.Vertex3D{
			Position: c.sum.MulScalar(inv),
			Normal:   c.nsum.Normalized(),
			Texcoord: c.uv,
		}
	}

	indices := make([]uint32, 0, len(base.Indices))
	for i := 0; i+2 < len(base.Indices); i += 3 {
		a := remap[base.Indices[i]]
		b := remap[base.Indices[i+1]]
		c := remap[base.Indices[i+2]]
		if a == b || b == c || a == c {
			continue
		}
		indices = append(indices, a, b, c)
	}

	mesh := resources.NewMeshResource(
		fmt.Sprintf("%s_lod%d", base.Name, level),
		vertices, indices, base.HasNormals, base.HasUVs,
	)
	mesh.LODLevel = level
	core.LogDebug("simplified %s: %d -> %d vertices (factor %.3f)",
		base.Name, base.VertexCount(), mesh.VertexCount(), factor)
	return mesh
}

package resources

import (
	"github.com/veilworld/engine/engine/math"
)

// Format identifies a concrete on-disk mesh format.
type Format uint8

/** @brief Pre-defined mesh source formats. */
const (
	/** @brief The baseline text polygon format (v/vn/vt/f directives). */
	FormatOBJ Format = iota
	/** @brief GLTF/GLB scene-graph formats, delegated to the platform loader. */
	FormatGLTF
	/** @brief FBX scene-graph format, delegated to the platform loader. */
	FormatFBX
	/** @brief USDZ scene-graph format, delegated to the platform loader. */
	FormatUSDZ
)

func (f Format) String() string {
	switch f {
	case FormatOBJ:
		return "obj"
	case FormatGLTF:
		return "gltf"
	case FormatFBX:
		return "fbx"
	case FormatUSDZ:
		return "usdz"
	}
	return "unknown"
}

// Capabilities is the feature set a per-format loader advertises so
// callers can degrade gracefully.
type Capabilities uint16

const (
	CapMaterials Capabilities = 1 << iota
	CapAnimation
	CapPhysics
	CapTextures
	CapNormals
	CapUVs
	CapBones
)

func (c Capabilities) Has(flag Capabilities) bool {
	return c&flag != 0
}

/**
 * @brief An immutable handle over mesh geometry: vertex positions with
 * optional normals/UVs, and a triangle-topology index buffer. Once
 * constructed it is never mutated, only replaced.
 */
type MeshResource struct {
	Name       string
	Vertices   []math.Vertex3D
	Indices    []uint32
	HasNormals bool
	HasUVs     bool
	LODLevel   int
	Bounds     math.Extents3D
}

// NewMeshResource builds a handle and derives its bounding box.
func NewMeshResource(name string, vertices []math.Vertex3D, indices []uint32, hasNormals, hasUVs bool) *MeshResource {
	return &MeshResource{
		Name:       name,
		Vertices:   vertices,
		Indices:    indices,
		HasNormals: hasNormals,
		HasUVs:     hasUVs,
		Bounds:     math.BoundsOf(vertices),
	}
}

func (m *MeshResource) VertexCount() int {
	return len(m.Vertices)
}

func (m *MeshResource) TriangleCount() int {
	return len(m.Indices) / 3
}

// SizeBytes estimates the resident footprint from actual buffer sizes:
// 12 bytes per position, 12 per normal, 8 per UV, 4 per index. A handle
// with no geometry still reports a small conservative floor so cache
// accounting never sees a zero-cost entry.
func (m *MeshResource) SizeBytes() uint64 {
	if m == nil || len(m.Vertices) == 0 {
		return 256
	}
	stride := uint64(12)
	if m.HasNormals {
		stride += 12
	}
	if m.HasUVs {
		stride += 8
	}
	return uint64(len(m.Vertices))*stride + uint64(len(m.Indices))*4
}

/**
 * @brief A named material: surface colour and texture map references.
 */
type MaterialResource struct {
	Name            string
	DiffuseColour   math.Vec4
	Shininess       float32
	DiffuseMapName  string
	SpecularMapName string
	NormalMapName   string
}

func (m *MaterialResource) SizeBytes() uint64 {
	if m == nil {
		return 64
	}
	return 64 + uint64(len(m.Name)+len(m.DiffuseMapName)+len(m.SpecularMapName)+len(m.NormalMapName))
}

// AvatarAppearance is the subset of a character's appearance that drives
// base-mesh generation.
type AvatarAppearance struct {
	Height float32
	Width  float32
}

package resources

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
)

// ProceduralMeshType is the closed set of generator kinds.
type ProceduralMeshType uint8

const (
	ProceduralBox ProceduralMeshType = iota
	ProceduralSphere
	ProceduralCylinder
	ProceduralPlane
	ProceduralHumanoid
	ProceduralFlower
	ProceduralCrystal
	ProceduralTree
	ProceduralRock
	ProceduralBuilding
	ProceduralTerrain
)

func (t ProceduralMeshType) String() string {
	switch t {
	case ProceduralBox:
		return "box"
	case ProceduralSphere:
		return "sphere"
	case ProceduralCylinder:
		return "cylinder"
	case ProceduralPlane:
		return "plane"
	case ProceduralHumanoid:
		return "humanoid"
	case ProceduralFlower:
		return "flower"
	case ProceduralCrystal:
		return "crystal"
	case ProceduralTree:
		return "tree"
	case ProceduralRock:
		return "rock"
	case ProceduralBuilding:
		return "building"
	case ProceduralTerrain:
		return "terrain"
	}
	return "unknown"
}

// ProceduralParams is the tagged parameter variant for one generator
// kind. CacheKey must be a deterministic function of the type and every
// parameter so equivalent requests share a cache slot.
type ProceduralParams interface {
	MeshType() ProceduralMeshType
	CacheKey() string
}

// paramKey hashes the given parameter values (FNV-1a over their bit
// patterns) into a stable cache key for the shape type.
func paramKey(t ProceduralMeshType, values ...float32) string {
	h := fnv.New64a()
	var buf [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return fmt.Sprintf("proc:%s:%016x", t, h.Sum64())
}

type BoxParams struct {
	Width, Height, Depth float32
}

func (p BoxParams) MeshType() ProceduralMeshType { return ProceduralBox }
func (p BoxParams) CacheKey() string {
	return paramKey(ProceduralBox, p.Width, p.Height, p.Depth)
}

type SphereParams struct {
	Radius float32
}

func (p SphereParams) MeshType() ProceduralMeshType { return ProceduralSphere }
func (p SphereParams) CacheKey() string {
	return paramKey(ProceduralSphere, p.Radius)
}

type CylinderParams struct {
	Radius, Height float32
}

func (p CylinderParams) MeshType() ProceduralMeshType { return ProceduralCylinder }
func (p CylinderParams) CacheKey() string {
	return paramKey(ProceduralCylinder, p.Radius, p.Height)
}

type PlaneParams struct {
	Width, Depth float32
	// Segments per side; 0 means a single quad.
	Segments int
}

func (p PlaneParams) MeshType() ProceduralMeshType { return ProceduralPlane }
func (p PlaneParams) CacheKey() string {
	return paramKey(ProceduralPlane, p.Width, p.Depth, float32(p.Segments))
}

type HumanoidParams struct {
	Height, Width float32
}

func (p HumanoidParams) MeshType() ProceduralMeshType { return ProceduralHumanoid }
func (p HumanoidParams) CacheKey() string {
	return paramKey(ProceduralHumanoid, p.Height, p.Width)
}

type FlowerParams struct {
	Petals      int
	PetalLength float32
	Height      float32
}

func (p FlowerParams) MeshType() ProceduralMeshType { return ProceduralFlower }
func (p FlowerParams) CacheKey() string {
	return paramKey(ProceduralFlower, float32(p.Petals), p.PetalLength, p.Height)
}

type CrystalParams struct {
	Sides  int
	Radius float32
	Height float32
}

func (p CrystalParams) MeshType() ProceduralMeshType { return ProceduralCrystal }
func (p CrystalParams) CacheKey() string {
	return paramKey(ProceduralCrystal, float32(p.Sides), p.Radius, p.Height)
}

type TreeParams struct {
	TrunkHeight float32
	TrunkRadius float32
	CrownRadius float32
}

func (p TreeParams) MeshType() ProceduralMeshType { return ProceduralTree }
func (p TreeParams) CacheKey() string {
	return paramKey(ProceduralTree, p.TrunkHeight, p.TrunkRadius, p.CrownRadius)
}

type RockParams struct {
	Radius    float32
	Roughness float32
	Seed      uint64
}

func (p RockParams) MeshType() ProceduralMeshType { return ProceduralRock }
func (p RockParams) CacheKey() string {
	return paramKey(ProceduralRock, p.Radius, p.Roughness,
		float32(p.Seed&0xffffffff), float32(p.Seed>>32))
}

type BuildingParams struct {
	Floors       int
	Width, Depth float32
	FloorHeight  float32
}

func (p BuildingParams) MeshType() ProceduralMeshType { return ProceduralBuilding }
func (p BuildingParams) CacheKey() string {
	return paramKey(ProceduralBuilding, float32(p.Floors), p.Width, p.Depth, p.FloorHeight)
}

type TerrainParams struct {
	// GridSize is the sample count per side of the height grid.
	GridSize int
	// Scale is the world-space spacing between adjacent samples.
	Scale float32
	// HeightScale multiplies every height sample.
	HeightScale float32
	Seed        uint64
}

func (p TerrainParams) MeshType() ProceduralMeshType { return ProceduralTerrain }
func (p TerrainParams) CacheKey() string {
	return paramKey(ProceduralTerrain, float32(p.GridSize), p.Scale, p.HeightScale,
		float32(p.Seed&0xffffffff), float32(p.Seed>>32))
}

package systems

import (
	"sync/atomic"

	"github.com/chewxy/math32"
	"golang.org/x/exp/rand"

	"github.com/veilworld/engine/engine/config"
	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/math"
	"github.com/veilworld/engine/engine/resources"
)

// GeometrySystem builds geometry algorithmically: primitive shapes,
// composite world objects and heightmap terrain. It is used both as a
// primary content source and as the universal fallback for failed asset
// loads, so Generate never hard-fails; any internal construction failure
// degrades to a unit box.
type GeometrySystem struct {
	// The tier is atomic: quality changes are a live operation and
	// worker goroutines read it mid-generation.
	quality atomic.Uint32
}

func NewGeometrySystem(cfg *config.GraphicsConfig) *GeometrySystem {
	gs := &GeometrySystem{}
	gs.quality.Store(uint32(cfg.Quality))
	return gs
}

// SetQuality adjusts the tessellation resolution for curved primitives.
// Safe to call while generations are in flight; running generations keep
// the tier they started with.
func (gs *GeometrySystem) SetQuality(q config.QualityTier) {
	gs.quality.Store(uint32(q))
}

// Quality returns the current tessellation tier.
func (gs *GeometrySystem) Quality() config.QualityTier {
	return config.QualityTier(gs.quality.Load())
}

// Generate builds the mesh for the given tagged parameters.
func (gs *GeometrySystem) Generate(params resources.ProceduralParams) (mesh *resources.MeshResource) {
	defer func() {
		if r := recover(); r != nil {
			core.LogWarn("procedural %s generation failed (%v), substituting unit box", params.MeshType(), r)
			mesh = gs.unitBox()
		}
	}()

	segments := gs.Quality().SegmentCount()

	switch p := params.(type) {
	case resources.BoxParams:
		v, i := buildBox(nonzero(p.Width), nonzero(p.Height), nonzero(p.Depth))
		mesh = resources.NewMeshResource("procedural_box", v, i, true, true)
	case resources.SphereParams:
		v, i := buildSphere(nonzero(p.Radius), segments)
		mesh = resources.NewMeshResource("procedural_sphere", v, i, true, true)
	case resources.CylinderParams:
		v, i := buildCylinder(nonzero(p.Radius), nonzero(p.Height), segments)
		mesh = resources.NewMeshResource("procedural_cylinder", v, i, true, true)
	case resources.PlaneParams:
		segs := p.Segments
		if segs < 1 {
			segs = 1
		}
		v, i := buildPlane(nonzero(p.Width), nonzero(p.Depth), segs)
		mesh = resources.NewMeshResource("procedural_plane", v, i, true, true)
	case resources.HumanoidParams:
		mesh = gs.generateHumanoid(p)
	case resources.FlowerParams:
		mesh = gs.generateFlower(p)
	case resources.CrystalParams:
		mesh = gs.generateCrystal(p)
	case resources.TreeParams:
		mesh = gs.generateTree(p, segments)
	case resources.RockParams:
		mesh = gs.generateRock(p, segments)
	case resources.BuildingParams:
		mesh = gs.generateBuilding(p)
	case resources.TerrainParams:
		mesh = gs.generateSeededTerrain(p)
	default:
		core.LogWarn("no generator for procedural type %s, substituting unit box", params.MeshType())
		mesh = gs.unitBox()
	}
	return mesh
}

// GenerateTerrain meshes an N by N grid of height samples. Output
// vertices sit at (x*scale, height*heightScale, z*scale); normals come
// from central differences with edges clamped to their nearest interior
// neighbor.
func (gs *GeometrySystem) GenerateTerrain(heights [][]float32, scale, heightScale float32) (mesh *resources.MeshResource) {
	defer func() {
		if r := recover(); r != nil {
			core.LogWarn("terrain generation failed (%v), substituting unit box", r)
			mesh = gs.unitBox()
		}
	}()

	n := len(heights)
	if n < 2 {
		core.LogWarn("terrain grid too small (%d), substituting unit box", n)
		return gs.unitBox()
	}
	scale = nonzero(scale)
	if heightScale == 0 {
		heightScale = 1
	}

	sample := func(x, z int) float32 {
		// Clamp instead of wrapping so edge normals lean on the nearest
		// interior neighbor.
		if x < 0 {
			x = 0
		} else if x > n-1 {
			x = n - 1
		}
		if z < 0 {
			z = 0
		} else if z > n-1 {
			z = n - 1
		}
		return heights[z][x] * heightScale
	}

	vertices := make([]math.Vertex3D, 0, n*n)
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			hl := sample(x-1, z)
			hr := sample(x+1, z)
			hd := sample(x, z-1)
			hu := sample(x, z+1)
			normal := math.NewVec3(hl-hr, 2*scale, hd-hu).Normalized()

			vertices = append(vertices, math.Vertex3D{
				Position: math.NewVec3(float32(x)*scale, sample(x, z), float32(z)*scale),
				Normal:   normal,
				Texcoord: math.NewVec2(float32(x)/float32(n-1), float32(z)/float32(n-1)),
			})
		}
	}

	indices := make([]uint32, 0, (n-1)*(n-1)*6)
	for z := 0; z < n-1; z++ {
		for x := 0; x < n-1; x++ {
			topLeft := uint32(z*n + x)
			topRight := topLeft + 1
			bottomLeft := uint32((z+1)*n + x)
			bottomRight := bottomLeft + 1
			indices = append(indices,
				topLeft, bottomLeft, topRight,
				topRight, bottomLeft, bottomRight)
		}
	}

	return resources.NewMeshResource("procedural_terrain", vertices, indices, true, true)
}

func (gs *GeometrySystem) unitBox() *resources.MeshResource {
	v, i := buildBox(1, 1, 1)
	return resources.NewMeshResource("fallback_box", v, i, true, true)
}

func nonzero(v float32) float32 {
	if v <= 0 {
		return 1.0
	}
	return v
}

// meshBuilder concatenates sub-shapes into shared vertex/index arrays,
// offsetting each sub-shape's indices by the running vertex count.
type meshBuilder struct {
	vertices []math.Vertex3D
	indices  []uint32
}

func (b *meshBuilder) add(vertices []math.Vertex3D, indices []uint32) {
	base := uint32(len(b.vertices))
	b.vertices = append(b.vertices, vertices...)
	for _, i := range indices {
		b.indices = append(b.indices, base+i)
	}
}

// addAt translates the sub-shape by offset before concatenating it.
func (b *meshBuilder) addAt(offset math.Vec3, vertices []math.Vertex3D, indices []uint32) {
	for i := range vertices {
		vertices[i].Position = vertices[i].Position.Add(offset)
	}
	b.add(vertices, indices)
}

// buildBox creates an axis-aligned box centered at the origin, four
// vertices per face so each face keeps a flat normal.
func buildBox(width, height, depth float32) ([]math.Vertex3D, []uint32) {
	half := math.NewVec3(width*0.5, height*0.5, depth*0.5)
	faces := []struct{ n, u, v math.Vec3 }{
		{math.NewVec3(0, 0, 1), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0)},   // front
		{math.NewVec3(0, 0, -1), math.NewVec3(-1, 0, 0), math.NewVec3(0, 1, 0)}, // back
		{math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1), math.NewVec3(0, 1, 0)},  // right
		{math.NewVec3(-1, 0, 0), math.NewVec3(0, 0, 1), math.NewVec3(0, 1, 0)},  // left
		{math.NewVec3(0, 1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1)},  // top
		{math.NewVec3(0, -1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, 1)},  // bottom
	}

	vertices := make([]math.Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i := 0; i < 4; i++ {
			su := float32(i%2)*2 - 1
			sv := float32(i/2)*2 - 1
			p := f.n.Add(f.u.MulScalar(su)).Add(f.v.MulScalar(sv))
			vertices = append(vertices, math.Vertex3D{
				Position: math.NewVec3(p.X*half.X, p.Y*half.Y, p.Z*half.Z),
				Normal:   f.n,
				Texcoord: math.NewVec2(float32(i%2), float32(i/2)),
			})
		}
		indices = append(indices, base, base+2, base+1, base+1, base+2, base+3)
	}
	return vertices, indices
}

// buildSphere creates a UV-sphere over a (segments+1) x (segments+1)
// radial/vertical grid with a duplicated seam column.
func buildSphere(radius float32, segments int) ([]math.Vertex3D, []uint32) {
	s := segments
	vertices := make([]math.Vertex3D, 0, (s+1)*(s+1))
	for y := 0; y <= s; y++ {
		v := float32(y) / float32(s)
		phi := v * math.K_PI
		for x := 0; x <= s; x++ {
			u := float32(x) / float32(s)
			theta := u * math.K_PI_2

			dir := math.NewVec3(
				math32.Sin(phi)*math32.Cos(theta),
				math32.Cos(phi),
				math32.Sin(phi)*math32.Sin(theta),
			)
			vertices = append(vertices, math.Vertex3D{
				Position: dir.MulScalar(radius),
				Normal:   dir,
				Texcoord: math.NewVec2(u, v),
			})
		}
	}

	indices := make([]uint32, 0, s*s*6)
	for y := 0; y < s; y++ {
		for x := 0; x < s; x++ {
			i0 := uint32(y*(s+1) + x)
			i1 := i0 + 1
			i2 := i0 + uint32(s+1)
			i3 := i2 + 1
			indices = append(indices, i0, i2, i1, i1, i2, i3)
		}
	}
	return vertices, indices
}

// buildCylinder creates a capped cylinder: a radial side grid plus
// fan-triangulated top and bottom caps. The base sits at y=0.
func buildCylinder(radius, height float32, segments int) ([]math.Vertex3D, []uint32) {
	s := segments
	var vertices []math.Vertex3D
	var indices []uint32

	// Side: two rings with radial normals and a duplicated seam column.
	for ring := 0; ring <= 1; ring++ {
		y := float32(ring) * height
		for x := 0; x <= s; x++ {
			u := float32(x) / float32(s)
			theta := u * math.K_PI_2
			dir := math.NewVec3(math32.Cos(theta), 0, math32.Sin(theta))
			vertices = append(vertices, math.Vertex3D{
				Position: math.NewVec3(dir.X*radius, y, dir.Z*radius),
				Normal:   dir,
				Texcoord: math.NewVec2(u, float32(ring)),
			})
		}
	}
	for x := 0; x < s; x++ {
		bottom := uint32(x)
		top := uint32(x + s + 1)
		indices = append(indices, bottom, top, bottom+1, bottom+1, top, top+1)
	}

	// Caps: center vertex plus a ring, fan-triangulated.
	for end := 0; end <= 1; end++ {
		y := float32(end) * height
		ny := float32(end)*2 - 1
		normal := math.NewVec3(0, ny, 0)

		center := uint32(len(vertices))
		vertices = append(vertices, math.Vertex3D{
			Position: math.NewVec3(0, y, 0),
			Normal:   normal,
			Texcoord: math.NewVec2(0.5, 0.5),
		})
		for x := 0; x <= s; x++ {
			theta := float32(x) / float32(s) * math.K_PI_2
			vertices = append(vertices, math.Vertex3D{
				Position: math.NewVec3(math32.Cos(theta)*radius, y, math32.Sin(theta)*radius),
				Normal:   normal,
				Texcoord: math.NewVec2(0.5+math32.Cos(theta)*0.5, 0.5+math32.Sin(theta)*0.5),
			})
		}
		for x := 0; x < s; x++ {
			a := center + 1 + uint32(x)
			b := a + 1
			if end == 0 {
				indices = append(indices, center, a, b)
			} else {
				indices = append(indices, center, b, a)
			}
		}
	}
	return vertices, indices
}

// buildPlane creates a flat grid in the XZ plane centered at the origin.
func buildPlane(width, depth float32, segments int) ([]math.Vertex3D, []uint32) {
	s := segments
	vertices := make([]math.Vertex3D, 0, (s+1)*(s+1))
	for z := 0; z <= s; z++ {
		for x := 0; x <= s; x++ {
			u := float32(x) / float32(s)
			v := float32(z) / float32(s)
			vertices = append(vertices, math.Vertex3D{
				Position: math.NewVec3((u-0.5)*width, 0, (v-0.5)*depth),
				Normal:   math.NewVec3(0, 1, 0),
				Texcoord: math.NewVec2(u, v),
			})
		}
	}
	indices := make([]uint32, 0, s*s*6)
	for z := 0; z < s; z++ {
		for x := 0; x < s; x++ {
			i0 := uint32(z*(s+1) + x)
			i1 := i0 + 1
			i2 := i0 + uint32(s+1)
			i3 := i2 + 1
			indices = append(indices, i0, i2, i1, i1, i2, i3)
		}
	}
	return vertices, indices
}

// generateHumanoid assembles the avatar base from independently sized
// boxes. Ratios relative to total height H and shoulder width W:
// legs 0.4H tall from the ground, torso 0.6H tall overlapping the hips,
// head 0.15H capping at H, arms at the silhouette edge so the bounding
// box is exactly H tall and W wide.
func (gs *GeometrySystem) generateHumanoid(p resources.HumanoidParams) *resources.MeshResource {
	h := p.Height
	if h <= 0 {
		h = 1.8
	}
	w := p.Width
	if w <= 0 {
		w = 0.5
	}
	d := 0.25 * w

	b := &meshBuilder{}

	// Torso 0.6H, spanning 0.25H..0.85H.
	tv, ti := buildBox(0.6*w, 0.6*h, d)
	b.addAt(math.NewVec3(0, 0.55*h, 0), tv, ti)

	// Head 0.15H, spanning 0.85H..1.0H.
	hv, hi := buildBox(0.3*w, 0.15*h, d)
	b.addAt(math.NewVec3(0, 0.925*h, 0), hv, hi)

	// Arms 0.45H, hanging from shoulder height at the silhouette edge.
	for _, side := range []float32{-1, 1} {
		av, ai := buildBox(0.2*w, 0.45*h, d)
		b.addAt(math.NewVec3(side*0.4*w, 0.6*h, 0), av, ai)
	}

	// Legs 0.4H, from the ground to the hips.
	for _, side := range []float32{-1, 1} {
		lv, li := buildBox(0.22*w, 0.4*h, d)
		b.addAt(math.NewVec3(side*0.14*w, 0.2*h, 0), lv, li)
	}

	return resources.NewMeshResource("procedural_humanoid", b.vertices, b.indices, true, true)
}

// generateFlower builds N petals as base-to-tip triangle fans plus
// interior center-to-base triangles around a shared center vertex.
func (gs *GeometrySystem) generateFlower(p resources.FlowerParams) *resources.MeshResource {
	petals := p.Petals
	if petals < 3 {
		petals = 5
	}
	length := nonzero(p.PetalLength)
	height := p.Height
	if height <= 0 {
		height = 0.3
	}
	innerR := 0.15 * length
	halfW := 0.2 * length

	var vertices []math.Vertex3D
	var indices []uint32

	up := math.NewVec3(0, 1, 0)
	center := uint32(0)
	vertices = append(vertices, math.Vertex3D{
		Position: math.NewVec3(0, height, 0),
		Normal:   up,
		Texcoord: math.NewVec2(0.5, 0.5),
	})

	for i := 0; i < petals; i++ {
		a := float32(i) / float32(petals) * math.K_PI_2
		dir := math.NewVec3(math32.Cos(a), 0, math32.Sin(a))
		side := math.NewVec3(-math32.Sin(a), 0, math32.Cos(a))

		baseL := uint32(len(vertices))
		vertices = append(vertices,
			math.Vertex3D{
				Position: dir.MulScalar(innerR).Sub(side.MulScalar(halfW)).Add(math.NewVec3(0, height, 0)),
				Normal:   up,
				Texcoord: math.NewVec2(0, 0),
			},
			math.Vertex3D{
				Position: dir.MulScalar(innerR).Add(side.MulScalar(halfW)).Add(math.NewVec3(0, height, 0)),
				Normal:   up,
				Texcoord: math.NewVec2(1, 0),
			},
			math.Vertex3D{
				// Tips curl slightly upward.
				Position: dir.MulScalar(length).Add(math.NewVec3(0, height+0.1*length, 0)),
				Normal:   up,
				Texcoord: math.NewVec2(0.5, 1),
			},
		)
		baseR := baseL + 1
		tip := baseL + 2

		indices = append(indices,
			baseL, tip, baseR, // petal
			center, baseL, baseR) // interior
	}

	return resources.NewMeshResource("procedural_flower", vertices, indices, true, true)
}

// generateCrystal builds a bipyramid: a base ring of N sides with a
// bottom and top apex, fan-triangulated caps.
func (gs *GeometrySystem) generateCrystal(p resources.CrystalParams) *resources.MeshResource {
	sides := p.Sides
	if sides < 3 {
		sides = 6
	}
	radius := nonzero(p.Radius)
	height := nonzero(p.Height)
	ringY := 0.45 * height

	vertices := make([]math.Vertex3D, 0, sides+2)
	bottom := uint32(0)
	top := uint32(1)
	vertices = append(vertices,
		math.Vertex3D{Position: math.NewVec3(0, 0, 0), Texcoord: math.NewVec2(0.5, 0)},
		math.Vertex3D{Position: math.NewVec3(0, height, 0), Texcoord: math.NewVec2(0.5, 1)},
	)
	ringStart := uint32(len(vertices))
	for i := 0; i < sides; i++ {
		a := float32(i) / float32(sides) * math.K_PI_2
		vertices = append(vertices, math.Vertex3D{
			Position: math.NewVec3(math32.Cos(a)*radius, ringY, math32.Sin(a)*radius),
			Texcoord: math.NewVec2(float32(i)/float32(sides), 0.5),
		})
	}

	indices := make([]uint32, 0, sides*6)
	for i := 0; i < sides; i++ {
		cur := ringStart + uint32(i)
		next := ringStart + uint32((i+1)%sides)
		indices = append(indices,
			bottom, next, cur, // lower pyramid
			top, cur, next) // upper pyramid
	}

	// Facet normals give crystals their hard-edged look.
	math.GeometryGenerateNormals(vertices, indices)
	return resources.NewMeshResource("procedural_crystal", vertices, indices, true, true)
}

// generateTree concatenates a cylinder trunk with a spherical crown.
func (gs *GeometrySystem) generateTree(p resources.TreeParams, segments int) *resources.MeshResource {
	trunkH := nonzero(p.TrunkHeight)
	trunkR := p.TrunkRadius
	if trunkR <= 0 {
		trunkR = trunkH * 0.1
	}
	crownR := p.CrownRadius
	if crownR <= 0 {
		crownR = trunkH * 0.5
	}

	b := &meshBuilder{}
	tv, ti := buildCylinder(trunkR, trunkH, segments)
	b.add(tv, ti)
	cv, ci := buildSphere(crownR, segments)
	b.addAt(math.NewVec3(0, trunkH+crownR*0.7, 0), cv, ci)

	return resources.NewMeshResource("procedural_tree", b.vertices, b.indices, true, true)
}

// generateRock perturbs a spherical grid with bounded per-vertex radial
// jitter. The same jitter is reused for the seam column and the poles so
// the surface stays watertight.
func (gs *GeometrySystem) generateRock(p resources.RockParams, segments int) *resources.MeshResource {
	radius := nonzero(p.Radius)
	roughness := p.Roughness
	if roughness <= 0 || roughness > 0.9 {
		roughness = 0.3
	}

	rng := rand.New(rand.NewSource(p.Seed))
	s := segments
	jitter := make([][]float32, s+1)
	for y := range jitter {
		jitter[y] = make([]float32, s)
		rowJitter := (rng.Float32()*2 - 1) * roughness
		for x := 0; x < s; x++ {
			if y == 0 || y == s {
				// One factor per pole row.
				jitter[y][x] = rowJitter
				continue
			}
			jitter[y][x] = (rng.Float32()*2 - 1) * roughness
		}
	}

	vertices, indices := buildSphere(radius, s)
	for y := 0; y <= s; y++ {
		for x := 0; x <= s; x++ {
			i := y*(s+1) + x
			factor := 1 + jitter[y][x%s]
			vertices[i].Position = vertices[i].Position.MulScalar(factor)
		}
	}
	math.GeometryGenerateNormals(vertices, indices)

	return resources.NewMeshResource("procedural_rock", vertices, indices, true, true)
}

// generateBuilding stacks per-floor boxes.
func (gs *GeometrySystem) generateBuilding(p resources.BuildingParams) *resources.MeshResource {
	floors := p.Floors
	if floors < 1 {
		floors = 3
	}
	width := nonzero(p.Width)
	depth := nonzero(p.Depth)
	floorH := p.FloorHeight
	if floorH <= 0 {
		floorH = 3.0
	}

	b := &meshBuilder{}
	for i := 0; i < floors; i++ {
		fv, fi := buildBox(width, floorH, depth)
		b.addAt(math.NewVec3(0, (float32(i)+0.5)*floorH, 0), fv, fi)
	}

	return resources.NewMeshResource("procedural_building", b.vertices, b.indices, true, true)
}

// generateSeededTerrain builds a height grid from seeded value noise
// (coarse random lattice, bilinearly upsampled) and meshes it.
func (gs *GeometrySystem) generateSeededTerrain(p resources.TerrainParams) *resources.MeshResource {
	n := p.GridSize
	if n < 2 {
		n = 33
	}
	scale := nonzero(p.Scale)
	heightScale := p.HeightScale
	if heightScale == 0 {
		heightScale = 4.0
	}

	const lattice = 8
	rng := rand.New(rand.NewSource(p.Seed))
	coarse := make([][]float32, lattice+1)
	for z := range coarse {
		coarse[z] = make([]float32, lattice+1)
		for x := range coarse[z] {
			coarse[z][x] = rng.Float32()
		}
	}

	heights := make([][]float32, n)
	for z := 0; z < n; z++ {
		heights[z] = make([]float32, n)
		for x := 0; x < n; x++ {
			fx := float32(x) / float32(n-1) * lattice
			fz := float32(z) / float32(n-1) * lattice
			x0, z0 := int(fx), int(fz)
			x1, z1 := x0+1, z0+1
			if x1 > lattice {
				x1 = lattice
			}
			if z1 > lattice {
				z1 = lattice
			}
			tx := fx - float32(x0)
			tz := fz - float32(z0)

			top := coarse[z0][x0]*(1-tx) + coarse[z0][x1]*tx
			bot := coarse[z1][x0]*(1-tx) + coarse[z1][x1]*tx
			heights[z][x] = top*(1-tz) + bot*tz
		}
	}

	return gs.GenerateTerrain(heights, scale, heightScale)
}

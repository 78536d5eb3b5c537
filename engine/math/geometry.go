package math

// BoundsOf computes the axis-aligned extents of a vertex array. An empty
// array yields the zero box.
func BoundsOf(vertices []Vertex3D) Extents3D {
	if len(vertices) == 0 {
		return Extents3D{}
	}
	e := Extents3D{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		e.Min = e.Min.Min(v.Position)
		e.Max = e.Max.Max(v.Position)
	}
	return e
}

// GeometryGenerateNormals fills in flat face normals for every triangle.
// NOTE: This just generates a face normal. Smoothing out should be done in
// a separate pass if desired.
func GeometryGenerateNormals(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0 := indices[i+0]
		i1 := indices[i+1]
		i2 := indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)

		normal := edge1.Cross(edge2).Normalized()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

func Vertex3dEqual(vert0, vert1 Vertex3D) bool {
	return vert0.Position.Compare(vert1.Position, K_FLOAT_EPSILON) &&
		vert0.Normal.Compare(vert1.Normal, K_FLOAT_EPSILON) &&
		vert0.Texcoord.Compare(vert1.Texcoord, K_FLOAT_EPSILON)
}

// GeometryDeduplicateVertices welds identical vertices and remaps the
// index buffer in place. Returns the reduced vertex array.
func GeometryDeduplicateVertices(vertices []Vertex3D, indices []uint32) []Vertex3D {
	unique := make([]Vertex3D, 0, len(vertices))
	remap := make([]uint32, len(vertices))

	for v := range vertices {
		found := false
		for u := range unique {
			if Vertex3dEqual(vertices[v], unique[u]) {
				remap[v] = uint32(u)
				found = true
				break
			}
		}
		if !found {
			remap[v] = uint32(len(unique))
			unique = append(unique, vertices[v])
		}
	}

	for i := range indices {
		indices[i] = remap[indices[i]]
	}

	return unique
}

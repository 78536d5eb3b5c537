package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/math"
	"github.com/veilworld/engine/engine/resources"
)

// OBJLoader parses the baseline text polygon format: line-oriented
// directives v (position), vn (normal), vt (texture coordinate) and
// f (face, 1-based indices). Polygonal faces are fan-triangulated.
type OBJLoader struct{}

func (l *OBJLoader) Capabilities() resources.Capabilities {
	return resources.CapNormals | resources.CapUVs
}

func (l *OBJLoader) Load(path string, lodLevel int) (*resources.MeshResource, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", core.ErrLoadingFailed, err)
	}
	defer f.Close()

	mesh, err := parseOBJ(f, strings.TrimSuffix(path, ".obj"))
	if err != nil {
		return nil, err
	}
	mesh.LODLevel = lodLevel
	return mesh, nil
}

func parseOBJ(src io.Reader, name string) (*resources.MeshResource, error) {
	var (
		positions []math.Vec3
		normals   []math.Vec3
		uvs       []math.Vec2
		indices   []uint32
	)

	scanner := bufio.NewScanner(src)
	linenum := 0

	for scanner.Scan() {
		linenum++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s", core.ErrInvalidFormat, linenum, err)
			}
			positions = append(positions, v)

		case "vn":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s", core.ErrInvalidFormat, linenum, err)
			}
			// Normals are normalized on read; exporters disagree on this.
			normals = append(normals, v.Normalized())

		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: line %d: vt needs 2 components", core.ErrInvalidFormat, linenum)
			}
			u, err1 := parseFloat(fields[1])
			v, err2 := parseFloat(fields[2])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%w: line %d: bad vt component", core.ErrInvalidFormat, linenum)
			}
			uvs = append(uvs, math.Vec2{X: u, Y: v})

		case "f":
			refs := fields[1:]
			if len(refs) < 3 {
				return nil, fmt.Errorf("%w: line %d: face with %d vertices", core.ErrInvalidFormat, linenum, len(refs))
			}
			face := make([]uint32, len(refs))
			for i, ref := range refs {
				idx, err := parseFaceRef(ref, len(positions))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %s", core.ErrInvalidFormat, linenum, err)
				}
				face[i] = idx
			}
			// Fan triangulation from the first referenced vertex:
			// (v0, vi, vi+1) for i in [1, n-1).
			for i := 1; i < len(face)-1; i++ {
				indices = append(indices, face[0], face[i], face[i+1])
			}

		default:
			// Unrecognized directives (o, g, s, mtllib, usemtl, ...) are
			// outside this core's contract and skipped.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrLoadingFailed, err)
	}

	if len(positions) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNoMeshFound, name)
	}

	// Normals/UVs attach only when their counts match the vertex count;
	// a mismatch drops the attribute rather than failing the load.
	hasNormals := len(normals) == len(positions)
	hasUVs := len(uvs) == len(positions)
	if len(normals) > 0 && !hasNormals {
		core.LogDebug("obj %s: %d normals for %d vertices, dropping normals", name, len(normals), len(positions))
	}
	if len(uvs) > 0 && !hasUVs {
		core.LogDebug("obj %s: %d uvs for %d vertices, dropping uvs", name, len(uvs), len(positions))
	}

	vertices := make([]math.Vertex3D, len(positions))
	for i := range positions {
		vertices[i].Position = positions[i]
		if hasNormals {
			vertices[i].Normal = normals[i]
		}
		if hasUVs {
			vertices[i].Texcoord = uvs[i]
		}
	}

	return resources.NewMeshResource(name, vertices, indices, hasNormals, hasUVs), nil
}

func parseVec3(fields []string) (math.Vec3, error) {
	if len(fields) < 3 {
		return math.Vec3{}, fmt.Errorf("need 3 components, got %d", len(fields))
	}
	x, err1 := parseFloat(fields[0])
	y, err2 := parseFloat(fields[1])
	z, err3 := parseFloat(fields[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return math.Vec3{}, fmt.Errorf("bad float component")
	}
	return math.Vec3{X: x, Y: y, Z: z}, nil
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

// parseFaceRef resolves one face vertex reference. References may be
// "v", "v/vt", "v/vt/vn" or "v//vn"; only the position index matters
// since attributes are positional arrays in this format. Indices are
// 1-based, negative indices count back from the current end.
func parseFaceRef(ref string, numPositions int) (uint32, error) {
	v := ref
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		v = ref[:i]
	}
	idx, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("bad face index %q", ref)
	}
	if idx < 0 {
		idx = numPositions + idx + 1
	}
	if idx < 1 || idx > numPositions {
		return 0, fmt.Errorf("face index %d out of range", idx)
	}
	return uint32(idx - 1), nil
}

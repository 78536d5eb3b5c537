package loaders

import (
	"fmt"

	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/resources"
)

// PlatformLoadFunc is the opaque platform loader contract for complex
// scene-graph formats: path in, mesh or failure out. The internal format
// handling is not part of this core.
type PlatformLoadFunc func(path string) (*resources.MeshResource, error)

// PlatformLoader adapts a PlatformLoadFunc to the loader registry.
type PlatformLoader struct {
	fn PlatformLoadFunc
}

func NewPlatformLoader(fn PlatformLoadFunc) *PlatformLoader {
	return &PlatformLoader{fn: fn}
}

// Capabilities advertises the full feature set; what actually survives
// the platform import depends on the delegate.
func (pl *PlatformLoader) Capabilities() resources.Capabilities {
	return resources.CapMaterials | resources.CapAnimation | resources.CapPhysics |
		resources.CapTextures | resources.CapNormals | resources.CapUVs | resources.CapBones
}

func (pl *PlatformLoader) Load(path string, lodLevel int) (*resources.MeshResource, error) {
	if pl.fn == nil {
		return nil, fmt.Errorf("%w: no platform loader registered", core.ErrUnsupportedFormat)
	}
	mesh, err := pl.fn(path)
	if err != nil {
		return nil, fmt.Errorf("%w: platform loader: %s", core.ErrLoadingFailed, err)
	}
	if mesh == nil || mesh.VertexCount() == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNoMeshFound, path)
	}
	mesh.LODLevel = lodLevel
	return mesh, nil
}

package systems

import (
	"runtime"

	"github.com/veilworld/engine/engine/assets"
	"github.com/veilworld/engine/engine/config"
	"github.com/veilworld/engine/engine/core"
)

// SystemManager constructs and owns the pipeline's systems in dependency
// order. It is an explicitly constructed, injected service with a
// caller-owned lifecycle; nothing here is process-global.
type SystemManager struct {
	Config    *config.GraphicsConfig
	Assets    *assets.AssetManager
	Geometry  *GeometrySystem
	LOD       *LODSystem
	Materials *MaterialSystem
	Jobs      *JobSystem
	Monitor   *core.PerformanceMonitor
	Mesh      *MeshSystem
}

// NewSystemManager wires the full pipeline from a configuration.
func NewSystemManager(cfg *config.GraphicsConfig) (*SystemManager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jobs, err := NewJobSystem(runtime.NumCPU(), 64)
	if err != nil {
		return nil, err
	}

	sm := &SystemManager{
		Config:    cfg,
		Assets:    assets.NewAssetManager(cfg.AssetBasePath),
		Geometry:  NewGeometrySystem(cfg),
		LOD:       NewLODSystem(cfg),
		Materials: NewMaterialSystem(cfg),
		Jobs:      jobs,
		Monitor:   core.NewPerformanceMonitor(),
	}
	sm.Mesh = NewMeshSystem(cfg, sm.Assets, sm.Geometry, sm.LOD, sm.Materials, sm.Jobs, sm.Monitor)

	core.LogInfo("mesh pipeline initialized (quality=%s, assets=%s)", cfg.Quality, cfg.AssetBasePath)
	return sm, nil
}

// Shutdown tears the systems down in reverse dependency order.
func (sm *SystemManager) Shutdown() error {
	sm.Mesh.Close()
	if err := sm.Jobs.Shutdown(); err != nil {
		return err
	}
	sm.Assets.Close()
	core.LogInfo("mesh pipeline shut down")
	return nil
}

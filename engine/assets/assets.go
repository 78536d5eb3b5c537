package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/veilworld/engine/engine/assets/loaders"
	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/resources"
)

// MeshLoader parses one concrete on-disk format into a mesh resource.
// Implementations advertise the feature set they can honor so callers can
// degrade gracefully.
type MeshLoader interface {
	Load(path string, lodLevel int) (*resources.MeshResource, error)
	Capabilities() resources.Capabilities
}

// AssetInfo is one indexed file under the asset root.
type AssetInfo struct {
	Path       string
	Format     resources.Format
	LastLoaded time.Time
}

// AssetManager owns format detection, the per-format loader registry and
// (optionally) a recursive filesystem watcher that keeps the asset index
// current as files appear and disappear.
type AssetManager struct {
	basePath string

	mutex   sync.RWMutex
	assets  map[string]AssetInfo
	loaders map[resources.Format]MeshLoader

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

// NewAssetManager builds a manager rooted at basePath with the baseline
// text format loader registered. Scene-graph formats stay unregistered
// until a platform loader is provided.
func NewAssetManager(basePath string) *AssetManager {
	am := &AssetManager{
		basePath: basePath,
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[resources.Format]MeshLoader),
		done:     make(chan struct{}),
	}
	am.RegisterLoader(resources.FormatOBJ, &loaders.OBJLoader{})
	return am
}

// RegisterLoader installs or replaces the loader for a format.
func (am *AssetManager) RegisterLoader(format resources.Format, loader MeshLoader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[format] = loader
}

// RegisterPlatformLoader installs the opaque "path in, mesh or failure
// out" delegate for every scene-graph format this core does not parse
// itself.
func (am *AssetManager) RegisterPlatformLoader(fn loaders.PlatformLoadFunc) {
	pl := loaders.NewPlatformLoader(fn)
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[resources.FormatGLTF] = pl
	am.loaders[resources.FormatFBX] = pl
	am.loaders[resources.FormatUSDZ] = pl
}

// DetectFormat infers the format from the source's extension, defaulting
// to the baseline text format when unrecognized.
func (am *AssetManager) DetectFormat(source string) resources.Format {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".obj":
		return resources.FormatOBJ
	case ".gltf", ".glb":
		return resources.FormatGLTF
	case ".fbx":
		return resources.FormatFBX
	case ".usdz":
		return resources.FormatUSDZ
	default:
		return resources.FormatOBJ
	}
}

// SupportsFeature reports whether the registered loader for the format
// advertises the capability.
func (am *AssetManager) SupportsFeature(format resources.Format, cap resources.Capabilities) bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	l, ok := am.loaders[format]
	return ok && l.Capabilities().Has(cap)
}

// LoadMesh dispatches the source to the loader registered for the format.
// Relative sources resolve under the asset base path.
func (am *AssetManager) LoadMesh(source string, format resources.Format, lodLevel int) (*resources.MeshResource, error) {
	am.mutex.RLock()
	loader, ok := am.loaders[format]
	am.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, format)
	}

	path := am.resolvePath(source, format)

	mesh, err := loader.Load(path, lodLevel)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Format: format, LastLoaded: time.Now()}
	am.mutex.Unlock()

	return mesh, nil
}

// LoadHeightmap decodes an image under the asset root into an N by N
// height grid.
func (am *AssetManager) LoadHeightmap(source string, gridSize int) ([][]float32, error) {
	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(am.basePath, path)
	}
	return loaders.LoadHeightmap(path, gridSize)
}

func (am *AssetManager) resolvePath(source string, format resources.Format) string {
	if filepath.IsAbs(source) || strings.Contains(source, "://") {
		return source
	}
	if filepath.Ext(source) == "" {
		source += "." + format.String()
	}
	return filepath.Join(am.basePath, "meshes", source)
}

// Watch starts the recursive filesystem watcher over the asset root.
// Watching is optional; without it the index is populated lazily on load.
func (am *AssetManager) Watch() error {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	if am.fsnotify != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = w

	go am.start()

	return am.watchRecursive(am.basePath)
}

func (am *AssetManager) start() {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					am.fsnotify.Add(e.Name)
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			if e.Op&fsnotify.Remove != 0 {
				am.removeAsset(e.Name)
				am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch
// list and indexes the files it passes.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

func (am *AssetManager) handleFileEvent(path string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj", ".gltf", ".glb", ".fbx", ".usdz":
	default:
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path:   path,
		Format: am.DetectFormat(path),
	}
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}

// IndexedAssets returns a copy of the current asset index.
func (am *AssetManager) IndexedAssets() []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	return out
}

// Close stops the watcher, if any. Safe to call more than once.
func (am *AssetManager) Close() {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return
	}
	am.isClosed = true
	close(am.done)
}

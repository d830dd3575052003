package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/okapi/engine/assets/loaders"
	"github.com/spaghettifunk/okapi/engine/core"
)

const changeBufferSize = 64

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrClosed        = errors.New("asset manager closed")
)

type AssetInfo struct {
	Path    string
	Type    loaders.ResourceType
	ModTime time.Time
}

// AssetManager indexes the files under a root directory and, when watching,
// reports changed files on a buffered channel. The watcher goroutine only
// updates the index; consumers drain the channel on their own goroutine.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager() (*AssetManager, error) {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		changes: make(chan string, changeBufferSize),
		done:    make(chan struct{}),
	}

	// Register loaders
	am.registerLoader(loaders.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(loaders.ResourceTypeModel, &loaders.ModelLoader{})
	return am, nil
}

// Initialize indexes every file under assetsDir and starts the watcher
// when watch is set.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		am.fsnotify = w
	}

	if err := am.watchRecursive(root); err != nil {
		am.Shutdown()
		return err
	}

	if am.fsnotify != nil {
		am.wg.Add(1)
		go am.start()
	}

	am.mutex.RLock()
	core.LogInfo("indexed %d assets under %s (watch=%t)", len(am.assets), root, watch)
	am.mutex.RUnlock()
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Path resolves a name relative to the assets root.
func (am *AssetManager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(am.root, filepath.FromSlash(name))
}

// Name is the inverse of Path. Files outside the root keep their path.
func (am *AssetManager) Name(path string) string {
	rel, err := filepath.Rel(am.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[name]
	return info, ok
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// LoadAsset loads an indexed asset with the loader of its type.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*loaders.Resource, error) {
	asset, exists := am.Lookup(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	loader, ok := am.loaders[asset.Type]
	if !ok {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(asset.Path, params)
}

func (am *AssetManager) UnloadAsset(res *loaders.Resource) error {
	if res == nil {
		return nil
	}
	loader, ok := am.loaders[res.Type]
	if !ok {
		return nil
	}
	return loader.Unload(res)
}

// Changes delivers the names of files created or modified on disk.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

// PollChanges drains the pending change notifications without blocking.
// Repeated notifications for the same file are collapsed.
func (am *AssetManager) PollChanges() []string {
	var out []string
	seen := map[string]bool{}
	for {
		select {
		case name, ok := <-am.changes:
			if !ok {
				return out
			}
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		default:
			return out
		}
	}
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	if am.fsnotify != nil {
		return am.fsnotify.Close()
	}
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		// A deleted directory cannot be stat'ed, so it is only dropped from
		// the index.
		am.removeAsset(am.Name(e.Name))
		return
	}
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return
	}

	s, err := os.Stat(e.Name)
	if err != nil {
		return
	}
	if s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
		}
		return
	}
	if name, ok := am.indexFile(e.Name, s); ok {
		am.notify(name)
	}
}

// notify never blocks the watcher. A full buffer drops the notification.
func (am *AssetManager) notify(name string) {
	select {
	case am.changes <- name:
	default:
		core.LogWarn("asset change buffer full, dropping %s", name)
	}
}

// watchRecursive indexes every file under path and watches every
// directory when a watcher exists.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if am.fsnotify != nil {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		am.indexFile(walkPath, fi)
		return nil
	})
}

func (am *AssetManager) indexFile(path string, fi fs.FileInfo) (string, bool) {
	assetType := determineAssetType(path)
	if assetType == loaders.ResourceTypeNone {
		return "", false
	}
	name := am.Name(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{
		Path:    path,
		Type:    assetType,
		ModTime: fi.ModTime(),
	}
	return name, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(name string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, name)
}

func determineAssetType(path string) loaders.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return loaders.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return loaders.ResourceTypeImage
	case ".obj":
		return loaders.ResourceTypeModel
	case ".bin":
		return loaders.ResourceTypeBinary
	default:
		return loaders.ResourceTypeNone
	}
}

package media

import (
	_ "embed"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/slighter12/calc-mcp-go/tools/types"
)

//go:embed assets/default.png
var defaultPNG []byte

// ImageExtensions lists the file types an image asset may point at.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// ImageAsset serves one image file, read lazily and cached until the file
// changes. An asset without a path serves the embedded default PNG.
type ImageAsset struct {
	root string
	path string

	mu       sync.RWMutex
	data     []byte
	mimeType string
	loaded   bool
	reloads  int
	onChange []func()
}

// NewImageAsset creates an asset for path, resolved against root.
func NewImageAsset(root, path string) *ImageAsset {
	return &ImageAsset{root: root, path: strings.TrimSpace(path)}
}

// Embedded reports whether the asset serves the built-in image.
func (a *ImageAsset) Embedded() bool {
	return a.path == ""
}

// Path returns the configured relative path, empty for the embedded image.
func (a *ImageAsset) Path() string {
	return a.path
}

// Load returns the image bytes and MIME type, reading the file on first use.
func (a *ImageAsset) Load() ([]byte, string, error) {
	a.mu.RLock()
	if a.loaded {
		data, mimeType := a.data, a.mimeType
		a.mu.RUnlock()
		return data, mimeType, nil
	}
	a.mu.RUnlock()

	return a.reload()
}

// Invalidate drops the cached bytes; the next Load reads the file again.
func (a *ImageAsset) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.mimeType = ""
	a.loaded = false
}

// OnChange registers fn to run after the watcher reloads or drops the cache.
func (a *ImageAsset) OnChange(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = append(a.onChange, fn)
}

func (a *ImageAsset) notifyChange() {
	a.mu.RLock()
	hooks := append([]func(){}, a.onChange...)
	a.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// Reloads counts successful reads since the asset was created.
func (a *ImageAsset) Reloads() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.reloads
}

func (a *ImageAsset) reload() ([]byte, string, error) {
	if a.Embedded() {
		a.store(defaultPNG, "image/png")
		return defaultPNG, "image/png", nil
	}

	data, resolved, err := types.ReadAssetFile(a.root, a.path, ImageExtensions)
	if err != nil {
		return nil, "", fmt.Errorf("read image asset %s: %w", a.path, err)
	}
	mimeType := detectMIME(resolved, data)
	a.store(data, mimeType)
	return data, mimeType, nil
}

func (a *ImageAsset) store(data []byte, mimeType string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = data
	a.mimeType = mimeType
	a.loaded = true
	a.reloads++
}

func detectMIME(path string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		if i := strings.IndexByte(byExt, ';'); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return http.DetectContentType(data)
}

package media

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/tools/types"
)

// StartWatch watches the asset's directory until ctx is done or stop is
// called. Writes and creates reload the cache; removes and renames drop it.
// The embedded asset has nothing to watch and gets a no-op stop.
func (a *ImageAsset) StartWatch(ctx context.Context) (stop func() error, err error) {
	if a.Embedded() {
		return func() error { return nil }, nil
	}

	target, err := types.ResolveAssetPath(a.root, a.path, ImageExtensions)
	if err != nil {
		return nil, fmt.Errorf("resolve image asset: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				a.handle(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Image asset watcher error", "path", a.path, "error", err)
			}
		}
	}()

	var once sync.Once
	var closeErr error
	stop = func() error {
		once.Do(func() {
			closeErr = watcher.Close()
			<-done
		})
		return closeErr
	}
	return stop, nil
}

func (a *ImageAsset) handle(event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		if _, _, err := a.reload(); err != nil {
			a.Invalidate()
			logger.Warn("Image asset reload failed", "path", a.path, "error", err)
			a.notifyChange()
			return
		}
		logger.Debug("Image asset reloaded", "path", a.path)
		a.notifyChange()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		a.Invalidate()
		logger.Debug("Image asset invalidated", "path", a.path, "op", event.Op.String())
		a.notifyChange()
	}
}

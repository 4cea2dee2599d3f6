package content

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/vytor/ceplayer/internal/logger"
)

// Watcher invalidates cached manifests when files under the content directory change.
// fsnotify is not recursive, so every directory is watched and new ones are added as
// they appear.
type Watcher struct {
	source  *Source
	watcher *fsnotify.Watcher
	log     *logger.Logger

	// OnInvalidate, when set, is called after each invalidation with the changed path.
	OnInvalidate func(path string)
}

func NewWatcher(source *Source) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		source:  source,
		watcher: fsw,
		log:     logger.Default().WithPrefix("content-watcher"),
	}
	if err := w.addTree(source.Dir()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run processes events until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.log.Info("watching %s", w.source.Dir())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path := filepath.Clean(event.Name)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.log.Warn("failed to watch new directory %s: %v", path, err)
			}
		}
	}
	if w.source.InvalidatePath(path) {
		w.log.Debug("invalidated cache for %s (%s)", path, event.Op)
		if w.OnInvalidate != nil {
			w.OnInvalidate(path)
		}
	}
}

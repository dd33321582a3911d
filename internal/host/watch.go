package host

import (
	"context"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay collapses the burst of events a single write produces.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the guest whenever the file at path changes, until ctx is
// done. Only local files can be watched.
func (h *Host) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors and build tools often replace the file, so watch its directory.
	if err := watcher.Watch(filepath.Dir(path)); err != nil {
		return err
	}

	logger := h.logger.With(zap.String("path", path))
	logger.Info("Watching guest module")

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case ev := <-watcher.Event:
			if filepath.Clean(ev.Name) == path && !ev.IsAttrib() {
				reload = time.After(reloadDelay)
			}
		case err := <-watcher.Error:
			logger.Warn("Watcher error", zap.Error(err))
		case <-reload:
			reload = nil
			logger.Info("Guest module changed")
			if err := h.RequestReload(); err != nil {
				return nil
			}
		}
	}
}

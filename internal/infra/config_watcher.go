package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigWatcher signals when the rule config file changes.
// It watches the parent directory because saves replace the file by rename.
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	changes chan struct{}
	logger  *zap.Logger
}

// NewConfigWatcher starts watching the directory of path.
// The directory is created if missing.
func NewConfigWatcher(path string, logger *zap.Logger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &ConfigWatcher{
		watcher: w,
		path:    abs,
		// One slot: bursts of events collapse into a single pending signal.
		changes: make(chan struct{}, 1),
		logger:  logger,
	}, nil
}

// Changes delivers a signal after the config file was written, created,
// renamed or removed.
func (c *ConfigWatcher) Changes() <-chan struct{} {
	return c.changes
}

// Run forwards file events until ctx is cancelled, then closes the watcher.
func (c *ConfigWatcher) Run(ctx context.Context) {
	defer c.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != c.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			c.logger.Debug("config file changed", zap.String("op", ev.Op.String()))
			select {
			case c.changes <- struct{}{}:
			default:
			}

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

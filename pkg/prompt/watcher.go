package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher is a Source backed by a prompt file that is reloaded whenever the
// file changes. A reload that fails to parse keeps the previous template.
type Watcher struct {
	path    string
	current atomic.Pointer[Template]
	logger  *slog.Logger
}

// NewWatcher loads path and returns a Watcher serving it. Call Run to start
// following changes.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{path: filepath.Clean(path), logger: logger}
	w.current.Store(t)
	return w, nil
}

// Current returns the most recently loaded template.
func (w *Watcher) Current() *Template {
	return w.current.Load()
}

// Run follows the prompt file until ctx is done. The parent directory is
// watched so editors that replace the file on save are handled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating prompt watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching prompt dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("prompt watcher error: %w", err)
		}
	}
}

func (w *Watcher) reload() {
	t, err := Load(w.path)
	if err != nil {
		w.logger.Warn("keeping previous prompt", "path", w.path, "error", err)
		return
	}
	w.current.Store(t)
	w.logger.Info("prompt reloaded", "path", w.path)
}

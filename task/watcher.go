package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits for more changes before
// re-reading the override file.
const defaultDebounce = 500 * time.Millisecond

// Watcher watches a task-override JSON file and replaces the registry
// collection when it changes. Editors typically write via rename, so the
// watcher watches the parent directory and filters events by name.
type Watcher struct {
	registry *Registry
	path     string
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the override file at path.
func NewWatcher(registry *Registry, path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		registry: registry,
		path:     path,
		debounce: defaultDebounce,
		logger:   logger,
		watcher:  fsw,
	}, nil
}

// Run applies the override file once, then processes change events until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	// Apply the current file contents at startup when present.
	if _, err := os.Stat(w.path); err == nil {
		w.apply(ctx)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: editors fire several events per save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.apply(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Task watcher error", "error", err)
		}
	}
}

// apply reads the override file and replaces the stored collection.
func (w *Watcher) apply(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("Failed to read task override file", "path", w.path, "error", err)
		return
	}

	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		w.logger.Warn("Invalid task override file, keeping current collection", "path", w.path, "error", err)
		return
	}

	if err := w.registry.ReplaceAll(ctx, defs); err != nil {
		w.logger.Warn("Failed to apply task override file", "path", w.path, "error", err)
		return
	}
	w.logger.Info("Applied task override file", "path", w.path, "tasks", len(defs))
}

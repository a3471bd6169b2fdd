package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce waits out editors that write a file in several steps.
const reloadDebounce = 500 * time.Millisecond

// Reloader watches the policy file and re-initializes the policy engine
// when it changes. The parent directory is watched rather than the file so
// that saves which rename a new file over the old one keep being seen.
type Reloader struct {
	watcher *fsnotify.Watcher
	reload  func() error
	logger  *slog.Logger
	paths   []string
	files   map[string]bool
}

// NewReloader watches the given paths; missing paths are skipped.
func NewReloader(reload func() error, logger *slog.Logger, paths []string) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	var watched []string
	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		clean := filepath.Clean(p)
		dir := filepath.Dir(clean)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
			}
			dirs[dir] = true
		}
		files[clean] = true
		watched = append(watched, p)
	}

	return &Reloader{watcher: watcher, reload: reload, logger: logger, paths: watched, files: files}, nil
}

// Paths returns the files being watched.
func (r *Reloader) Paths() []string {
	return r.paths
}

// Run handles file events until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !r.files[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := r.reload(); err != nil {
					r.logger.Warn("hot-reload failed, keeping previous policy", "error", err)
					return
				}
				r.logger.Info("hot-reload: policy reloaded", "path", event.Name)
			})

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}

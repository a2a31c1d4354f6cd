// Package watch re-runs an action whenever one of a set of files changes.
//
// Parent directories are watched rather than the files themselves so that
// editors which replace files by rename are still noticed. Bursts of events
// are collapsed by a debounce timer, and runs never overlap.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schaermu/filedeploy/internal/logfields"
)

// DefaultDebounce is the quiet period after the last event before a run.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc performs one run and returns the paths to watch afterwards.
type RunFunc func(ctx context.Context) ([]string, error)

// Watcher triggers a RunFunc on file changes.
type Watcher struct {
	run      RunFunc
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	files    map[string]bool
	dirs     map[string]bool
	ready    chan struct{}
}

// New creates a watcher. Close must be called to release the notifier.
func New(run RunFunc, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		run:      run,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		ready:    make(chan struct{}),
	}, nil
}

// Close stops the underlying notifier.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Ready is closed once the initial run has finished and its paths are
// being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run performs an initial run and then one run per debounced burst of
// changes until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.trigger(ctx)
	close(w.ready)

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("change detected", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logfields.Error(err))

		case <-fire:
			w.trigger(ctx)
		}
	}
}

func (w *Watcher) trigger(ctx context.Context) {
	paths, err := w.run(ctx)
	if err != nil {
		w.logger.Error("run failed", logfields.Error(err))
	}
	// An empty result keeps the previous watch set so that fixing a broken
	// file still triggers another run.
	if len(paths) > 0 {
		w.watch(paths)
	}
}

func (w *Watcher) watch(paths []string) {
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		files[abs] = true

		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Debug("cannot watch directory", slog.String("path", dir), logfields.Error(err))
			continue
		}
		w.dirs[dir] = true
	}
	w.files = files
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return w.files[filepath.Clean(ev.Name)]
}

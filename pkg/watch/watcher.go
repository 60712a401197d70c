// Package watch re-runs work when watched files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces bursts of writes to one change.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors files for changes and triggers updates.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	files map[string]*fileState
}

type fileState struct {
	lastModified time.Time
	size         int64
	timer        *time.Timer
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
}

// NewWatcher creates a new file watcher.
func NewWatcher(opts Options) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{
		watcher:  fsWatcher,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		files:    make(map[string]*fileState),
	}, nil
}

// Watch adds files. The containing directory is watched so that editors
// replacing a file by rename are still seen.
func (w *Watcher) Watch(paths ...string) error {
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("watch: resolve %s: %w", path, err)
		}
		stat, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}

		w.mu.Lock()
		w.files[absPath] = &fileState{lastModified: stat.ModTime(), size: stat.Size()}
		w.mu.Unlock()

		if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
			return fmt.Errorf("watch: add %s: %w", filepath.Dir(absPath), err)
		}
	}
	return nil
}

// Run blocks until ctx is cancelled, calling onChange with the absolute
// path of each file whose size or modification time changed. Calls are
// serialized. An onChange error is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, path string) error) error {
	defer w.watcher.Close()
	fired := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.schedule(ctx, absPath, fired)

		case path := <-fired:
			if !w.changed(path) {
				continue
			}
			w.logger.Info("file changed", zap.String("path", path))
			if err := onChange(ctx, path); err != nil {
				w.logger.Warn("change handler failed", zap.String("path", path), zap.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule restarts the debounce timer of a watched file.
func (w *Watcher) schedule(ctx context.Context, path string, fired chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.files[path]
	if !ok {
		return
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	state.timer = time.AfterFunc(w.debounce, func() {
		select {
		case fired <- path:
		case <-ctx.Done():
		}
	})
}

// changed compares the file against its last known state and records the
// new one.
func (w *Watcher) changed(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		w.logger.Warn("stat changed file", zap.String("path", path), zap.Error(err))
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	state := w.files[path]
	if stat.ModTime().Equal(state.lastModified) && stat.Size() == state.size {
		return false
	}
	state.lastModified = stat.ModTime()
	state.size = stat.Size()
	return true
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, state := range w.files {
		if state.timer != nil {
			state.timer.Stop()
		}
	}
}

// Close stops the watcher without running.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Package watch re-runs a callback when project or template files change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce absorbs the burst of events an editor produces per save
const DefaultDebounce = 300 * time.Millisecond

const tick = 50 * time.Millisecond

// Handler is called with the changed path once its events have settled
type Handler func(ctx context.Context, path string)

// Watcher watches individual files by watching their parent directories,
// which survives editors that save by rename
type Watcher struct {
	Debounce time.Duration

	handler Handler
	logger  *zap.Logger
	files   map[string]bool
	dirs    []string

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a watcher for the given files. A nil logger disables logging.
func New(handler Handler, logger *zap.Logger, files ...string) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch handler is required")
	}
	if len(files) == 0 {
		return nil, errors.New("no files to watch")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		Debounce: DefaultDebounce,
		handler:  handler,
		logger:   logger,
		files:    make(map[string]bool, len(files)),
		pending:  make(map[string]time.Time),
	}
	seen := map[string]bool{}
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	sort.Strings(w.dirs)
	return w, nil
}

// Run watches until ctx is cancelled. Handlers run on the watch goroutine,
// one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close() //nolint:errcheck

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", zap.String("dir", dir))
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, time.Now())

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range w.due(now) {
				w.logger.Info("file changed", zap.String("path", path))
				w.handler(ctx, path)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, now time.Time) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil || !w.files[abs] {
		return
	}
	w.mu.Lock()
	w.pending[abs] = now
	w.mu.Unlock()
}

// due returns the settled paths and forgets them
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

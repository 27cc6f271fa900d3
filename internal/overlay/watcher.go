package overlay

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"slashsense/internal/logging"
)

// Watcher reloads the overlay store when its backing file changes on disk.
// Opt-in: the default contract is explicit reload only, but long-lived hosts
// can run one of these to pick up edits mid-session. Rapid saves are
// debounced so an editor's write-rename dance triggers one reload.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	store    *Store
	path     string
	pending  time.Time
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for the overlay file backing store.
func NewWatcher(store *Store, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		store:    store,
		path:     path,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
// Watches the parent directory because editors replace files by rename,
// which drops a watch on the file itself.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		logging.Get(logging.CategoryOverlay).Warn("overlay watch failed for %s: %v", dir, err)
	} else {
		logging.Overlay("watching overlay file: %s", w.path)
	}

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryOverlay).Error("error closing overlay watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryOverlay).Error("overlay watcher error: %v", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	logging.OverlayDebug("overlay file event: %s", event.Op)
	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flushPending() {
	w.mu.Lock()
	ready := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
	if ready {
		w.pending = time.Time{}
	}
	w.mu.Unlock()

	if !ready {
		return
	}
	if err := w.store.Reload(); err != nil {
		// Keep serving the previous entries; a half-written file is the
		// common cause and the next save fixes it.
		logging.Get(logging.CategoryOverlay).Warn("overlay reload failed, keeping previous patterns: %v", err)
	}
}

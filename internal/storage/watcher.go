package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/item"
)

// DefaultWatchDebounce is how long a body path must be quiet before it is checked.
const DefaultWatchDebounce = 300 * time.Millisecond

// Watcher observes the items directory for changes made outside the store
// (a user deleting or copying files by hand) and rebuilds the index when the
// directory and the index disagree.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	log     *zap.Logger

	mu          sync.Mutex
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher for s. Call Start to begin watching.
func NewWatcher(s *Store, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &Watcher{
		store:       s,
		watcher:     fw,
		log:         s.log.Named("watcher"),
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine. It is a no-op if already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.store.itemsDir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.log.Debug("watching items directory", zap.String("dir", w.store.itemsDir))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Error("error closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
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
			w.log.Error("watch error", zap.Error(err))
		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	id, ok := strings.CutSuffix(filepath.Base(event.Name), bodyExt)
	if !ok || !item.ValidID(id) {
		return
	}
	w.mu.Lock()
	w.debounceMap[id] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for id, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			ready = append(ready, id)
			delete(w.debounceMap, id)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	// Before the first load there is nothing to disagree with; loading checks
	// the directory on its own.
	w.store.mu.RLock()
	loaded := w.store.loaded
	w.store.mu.RUnlock()
	if !loaded {
		return
	}

	for _, id := range ready {
		_, err := os.Lstat(w.store.bodyPath(id))
		onDisk := err == nil
		if onDisk == w.store.indexed(id) {
			continue
		}
		w.log.Info("item files changed outside the store, rebuilding", zap.String("id", id))
		w.store.MarkDirty()
		if _, err := w.store.Rebuild(ctx); err != nil {
			w.log.Error("rebuild after external change failed", zap.Error(err))
		}
		return
	}
}

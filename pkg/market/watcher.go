package market

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/strikeline/strikeline/pkg/logger"
)

// DefaultSettlingDelay is how long file events are allowed to settle before
// the watchlist is re-read. Editors write in bursts; only the last event of
// a burst triggers a reload.
const DefaultSettlingDelay = 250 * time.Millisecond

// WatchlistWatcher reloads the watchlist file whenever it changes on disk
// and hands the fresh ticker set to a callback. The watch is placed on the
// parent directory so save-by-rename editors keep working.
type WatchlistWatcher struct {
	path     string
	settle   time.Duration
	onReload func([]string)
	log      logger.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

// NewWatchlistWatcher builds a watcher for path. A settle of zero uses
// DefaultSettlingDelay.
func NewWatchlistWatcher(path string, settle time.Duration, onReload func([]string), log logger.Logger) *WatchlistWatcher {
	if settle <= 0 {
		settle = DefaultSettlingDelay
	}
	if log == nil {
		log = logger.Default()
	}
	return &WatchlistWatcher{
		path:     path,
		settle:   settle,
		onReload: onReload,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It fails when the parent directory cannot be
// watched; the caller decides whether that is fatal.
func (w *WatchlistWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watcher = watcher
	go w.loop()
	w.log.Debug("watching watchlist", logger.WithField("path", w.path))
	return nil
}

// Stop tears the watch down. It is idempotent; a reload already settling is
// cancelled.
func (w *WatchlistWatcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *WatchlistWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watchlist watcher error", logger.WithField("error", err.Error()))
		}
	}
}

// scheduleReload re-arms the settling timer so only the last event in a
// burst fires.
func (w *WatchlistWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.settle, w.reload)
}

func (w *WatchlistWatcher) reload() {
	tickers, err := LoadWatchlist(w.path)
	if err != nil {
		w.log.Warn("watchlist reload failed", logger.WithField("error", err.Error()))
		return
	}
	w.log.Info("watchlist reloaded", logger.WithField("tickers", len(tickers)))
	w.onReload(tickers)
}

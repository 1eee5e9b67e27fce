package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Store when its gateway document is edited on disk.
// It watches the parent directory rather than the file itself, so
// editors that replace the file via rename are still observed, and it
// debounces bursts of write events to prevent reload storms.
type Watcher struct {
	store    *Store
	debounce time.Duration
}

// DefaultDebounceInterval is the time to wait after the last observed
// change before triggering a reload.
const DefaultDebounceInterval = 100 * time.Millisecond

// NewWatcher creates a watcher for the given store. A non-positive
// debounce interval falls back to DefaultDebounceInterval.
func NewWatcher(store *Store, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &Watcher{store: store, debounce: debounce}
}

// Watch blocks until the context is cancelled, reloading the store after
// each debounced change to the gateway document. Reload failures are
// logged and the previous in-memory document stays in effect.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.store.Path())
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	slog.Info("gateway config watcher started",
		"path", w.store.Path(),
		"debounce_ms", w.debounce.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			slog.Info("gateway config watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			// Restart the debounce window on every relevant event.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := w.store.Reload(); err != nil {
				slog.Error("gateway config reload failed, keeping previous config",
					"path", w.store.Path(),
					"error", err,
				)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("gateway config watcher error", "error", err)
		}
	}
}

// relevant reports whether the event concerns the gateway document and is
// a mutation worth reloading for.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.store.Path()) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

// Package filewatcher provides file system monitoring adapters.
package filewatcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DefaultExtensions are the document types the ingestion pipeline loads.
var DefaultExtensions = []string{".pdf", ".json", ".txt", ".md"}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
// Bursts of events for one path within the debounce window collapse into one.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	debounce   time.Duration
}

// NewFSNotifyWatcher creates a new file watcher. A zero debounce emits every event.
func NewFSNotifyWatcher(extensions []string, debounce time.Duration) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	normalized := make([]string, len(extensions))
	for i, e := range extensions {
		normalized[i] = strings.ToLower(e)
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: normalized,
		debounce:   debounce,
	}, nil
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)
	go w.loop(ctx, events)
	return events, nil
}

func (w *FSNotifyWatcher) loop(ctx context.Context, events chan<- ports.FileEvent) {
	defer close(events)

	pending := make(map[string]ports.FileOperation)
	timers := make(map[string]*time.Timer)
	ready := make(chan string, 100)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	emit := func(ev ports.FileEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			op, ok := translate(event.Op)
			if !ok {
				continue
			}
			if w.debounce <= 0 {
				if !emit(ports.FileEvent{Path: event.Name, Operation: op}) {
					return
				}
				continue
			}

			pending[event.Name] = merge(pending[event.Name], op, hasPending(pending, event.Name))
			if t, ok := timers[event.Name]; ok {
				t.Reset(w.debounce)
				continue
			}
			path := event.Name
			timers[path] = time.AfterFunc(w.debounce, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
		case path := <-ready:
			op, ok := pending[path]
			delete(pending, path)
			delete(timers, path)
			if ok && !emit(ports.FileEvent{Path: path, Operation: op}) {
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}

func translate(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	default:
		return 0, false
	}
}

// merge folds next into the pending operation for a path.
func merge(prev, next ports.FileOperation, hadPrev bool) ports.FileOperation {
	if !hadPrev {
		return next
	}
	switch {
	case next == ports.FileDeleted:
		return ports.FileDeleted
	case prev == ports.FileCreated:
		return ports.FileCreated
	case prev == ports.FileDeleted:
		// Deleted then recreated within the window.
		return ports.FileModified
	default:
		return next
	}
}

func hasPending(pending map[string]ports.FileOperation, path string) bool {
	_, ok := pending[path]
	return ok
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

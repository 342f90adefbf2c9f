// Package watch reports changes to case documents under a directory tree.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"keyrunner/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// Operation is the kind of change observed for a case file.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Change is one debounced change to a case file.
type Change struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// DefaultDebounce collapses editor save bursts into one change.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a directory tree for *.yaml and *.yml changes.
type Watcher struct {
	mu sync.Mutex

	root             string
	debounceInterval time.Duration
	watcher          *fsnotify.Watcher
	pending          map[string]*pendingChange
	stopCh           chan struct{}
	running          bool
}

type pendingChange struct {
	change Change
	timer  *time.Timer
}

// New creates a watcher for root. A zero debounce uses DefaultDebounce.
func New(root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:             root,
		debounceInterval: debounce,
		pending:          make(map[string]*pendingChange),
	}
}

// Start begins watching and sends debounced changes on changes until ctx is
// done or Stop is called. Sends never block: when changes is full the
// change is dropped and logged.
func (w *Watcher) Start(ctx context.Context, changes chan<- Change) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		w.Stop()
		return err
	}

	go w.processEvents(ctx, changes)

	logging.Info("Watcher", "Watching %s for case changes", w.root)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
	for key, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, key)
	}
	logging.Debug("Watcher", "Stopped watching %s", w.root)
}

// addTree watches root and every directory below it. A single file root
// is watched through its parent directory.
func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(root))
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		logging.Debug("Watcher", "Watching directory: %s", path)
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context, changes chan<- Change) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, changes)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, changes chan<- Change) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logging.Warn("Watcher", "Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !isYAMLFile(event.Name) || !w.inScope(event.Name) {
		return
	}

	var operation Operation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		operation = OperationCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		operation = OperationUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		operation = OperationDelete
	default:
		return
	}

	w.debounce(Change{Path: event.Name, Operation: operation, Timestamp: time.Now()}, changes)
}

// inScope filters events from the parent directory of a single-file root.
func (w *Watcher) inScope(path string) bool {
	info, err := os.Stat(w.root)
	if err != nil || info.IsDir() {
		return true
	}
	return filepath.Clean(path) == filepath.Clean(w.root)
}

func (w *Watcher) debounce(change Change, changes chan<- Change) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	key := change.Path
	if p, ok := w.pending[key]; ok {
		p.timer.Stop()
		change.Operation = mergeOperations(p.change.Operation, change.Operation)
	}

	timer := time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		p, ok := w.pending[key]
		if ok {
			delete(w.pending, key)
		}
		w.mu.Unlock()

		if !ok {
			return
		}
		select {
		case changes <- p.change:
			logging.Debug("Watcher", "Emitted change: %s %s", p.change.Operation, p.change.Path)
		default:
			logging.Warn("Watcher", "Change channel full, dropping change for %s", p.change.Path)
		}
	})

	w.pending[key] = &pendingChange{change: change, timer: timer}
}

// mergeOperations folds a burst of events for one path into one operation.
func mergeOperations(old, new Operation) Operation {
	if old == OperationCreate {
		if new == OperationDelete {
			return OperationDelete
		}
		return OperationCreate
	}
	if old == OperationUpdate && new == OperationDelete {
		return OperationDelete
	}
	return new
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Package watcher provides file watching for configuration live reload.
//
// The watcher monitors individual files through fsnotify and reports
// changes to subscribers registered with OnDidChange, OnDidCreate,
// OnDidDelete, OnDidRename and OnDidFail. Each registration returns a
// disposable that cancels it.
//
// Parent directories are watched rather than the files themselves so that
// editors which save by writing a temporary file and renaming it over the
// original keep being observed.
package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"

	"github.com/dshills/eventkit/disposable"
	"github.com/dshills/eventkit/emitter"
)

// Errors returned by the watcher.
var (
	// ErrClosed is returned by operations on a closed watcher.
	ErrClosed = errors.New("watcher is closed")

	// ErrNotWatching is returned by Unwatch for a file that isn't watched.
	ErrNotWatching = errors.New("file is not being watched")
)

// Event names used on the watcher's emitter.
const (
	EventChange = "did-change"
	EventCreate = "did-create"
	EventDelete = "did-delete"
	EventRename = "did-rename"
	EventFail   = "did-fail"
)

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the event occurred.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// eventName maps an operation to the event it is emitted as.
func (op Operation) eventName() string {
	switch op {
	case OpCreate:
		return EventCreate
	case OpRemove:
		return EventDelete
	case OpRename:
		return EventRename
	default:
		return EventChange
	}
}

// Watcher monitors files for changes.
type Watcher struct {
	mu sync.RWMutex

	fsw *fsnotify.Watcher

	// Watched files and the number of watched files per directory.
	files map[string]struct{}
	dirs  map[string]int

	emitter *emitter.Emitter
	logger  *slog.Logger

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup

	// Debounce settings
	debounce     time.Duration
	pendingMu    sync.Mutex
	pendingFiles map[string]pendingEvent
}

// pendingEvent stores a pending event with its operation for debouncing.
type pendingEvent struct {
	Op   Operation
	Time time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration for rapid changes.
// Zero delivers every event as it arrives.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a file watcher and starts its event loop.
func New(opts ...Option) (*Watcher, error) {
	w := &Watcher{
		files:        make(map[string]struct{}),
		dirs:         make(map[string]int),
		logger:       slog.Default(),
		closeCh:      make(chan struct{}),
		debounce:     100 * time.Millisecond,
		pendingFiles: make(map[string]pendingEvent),
	}

	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.fsw = fsw
	w.emitter = emitter.New(emitter.WithLogger(w.logger))

	w.wg.Add(1)
	go w.processLoop()

	if w.debounce > 0 {
		w.wg.Add(1)
		go w.debounceLoop()
	}

	return w, nil
}

// Watch adds a file to the watch list. The file need not exist yet, but
// its directory must.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, ok := w.files[absPath]; ok {
		return nil
	}

	dir := filepath.Dir(absPath)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}
	w.dirs[dir]++
	w.files[absPath] = struct{}{}

	w.logger.Debug("watching file", "path", absPath)
	return nil
}

// WatchAll adds every path and returns the errors of those that failed.
func (w *Watcher) WatchAll(paths ...string) error {
	var errs error
	for _, path := range paths {
		errs = multierr.Append(errs, w.Watch(path))
	}
	return errs
}

// Unwatch removes a file from the watch list.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, ok := w.files[absPath]; !ok {
		return ErrNotWatching
	}
	delete(w.files, absPath)

	dir := filepath.Dir(absPath)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("unwatching %s: %w", path, err)
	}
	return nil
}

// WatchedFiles returns the watched files in sorted order.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// OnDidChange calls fn when a watched file is written.
func (w *Watcher) OnDidChange(fn func(Event)) (*disposable.Disposable, error) {
	return emitter.Observe(w.emitter, EventChange, fn)
}

// OnDidCreate calls fn when a watched file is created.
func (w *Watcher) OnDidCreate(fn func(Event)) (*disposable.Disposable, error) {
	return emitter.Observe(w.emitter, EventCreate, fn)
}

// OnDidDelete calls fn when a watched file is removed.
func (w *Watcher) OnDidDelete(fn func(Event)) (*disposable.Disposable, error) {
	return emitter.Observe(w.emitter, EventDelete, fn)
}

// OnDidRename calls fn when a watched file is renamed away.
func (w *Watcher) OnDidRename(fn func(Event)) (*disposable.Disposable, error) {
	return emitter.Observe(w.emitter, EventRename, fn)
}

// OnDidFail calls fn with errors reported by the underlying watcher.
func (w *Watcher) OnDidFail(fn func(error)) (*disposable.Disposable, error) {
	return emitter.Observe(w.emitter, EventFail, fn)
}

// Close stops the event loop, drops pending events and releases every
// subscription. It must not be called from a handler.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.emitter.Dispose()

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("closing fsnotify watcher: %w", err)
	}
	w.logger.Debug("watcher closed")
	return nil
}

// Dispose closes the watcher, logging any error.
func (w *Watcher) Dispose() {
	if err := w.Close(); err != nil {
		w.logger.Error("closing watcher", "error", err)
	}
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
			w.safeEmit(EventFail, err)
		}
	}
}

// handleFSEvent converts an fsnotify event for a watched file and either
// queues or emits it.
func (w *Watcher) handleFSEvent(fsEvent fsnotify.Event) {
	path := filepath.Clean(fsEvent.Name)

	w.mu.RLock()
	_, watched := w.files[path]
	w.mu.RUnlock()
	if !watched {
		return
	}

	op, ok := convertOp(fsEvent.Op)
	if !ok {
		return
	}

	event := Event{Path: path, Op: op, Time: time.Now()}
	if w.debounce > 0 {
		w.queueEvent(event)
		return
	}
	w.emitEvent(event)
}

// convertOp picks the most significant operation from an fsnotify op.
// Chmod alone is not reported.
func convertOp(fsOp fsnotify.Op) (Operation, bool) {
	switch {
	case fsOp.Has(fsnotify.Remove):
		return OpRemove, true
	case fsOp.Has(fsnotify.Rename):
		return OpRename, true
	case fsOp.Has(fsnotify.Create):
		return OpCreate, true
	case fsOp.Has(fsnotify.Write):
		return OpWrite, true
	default:
		return 0, false
	}
}

// queueEvent queues an event for debounced delivery.
// It coalesces events:
// - create + write => create
// - write + write => write (latest time)
// - any + remove => remove
// - remove + create => create (the file was replaced)
func (w *Watcher) queueEvent(event Event) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	existing, exists := w.pendingFiles[event.Path]
	if !exists {
		w.pendingFiles[event.Path] = pendingEvent{Op: event.Op, Time: event.Time}
		return
	}

	switch event.Op {
	case OpWrite:
		// Write doesn't override create, remove or rename.
		w.pendingFiles[event.Path] = pendingEvent{Op: existing.Op, Time: event.Time}
	default:
		w.pendingFiles[event.Path] = pendingEvent{Op: event.Op, Time: event.Time}
	}
}

// debounceLoop processes debounced events.
func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.closeCh:
			return
		case now := <-ticker.C:
			w.processPendingEvents(now)
		}
	}
}

// processPendingEvents emits events that have been stable for the
// debounce duration, oldest first.
func (w *Watcher) processPendingEvents(now time.Time) {
	w.pendingMu.Lock()
	stableThreshold := now.Add(-w.debounce)

	var toEmit []Event
	for path, pending := range w.pendingFiles {
		if pending.Time.Before(stableThreshold) {
			toEmit = append(toEmit, Event{
				Path: path,
				Op:   pending.Op,
				Time: pending.Time,
			})
			delete(w.pendingFiles, path)
		}
	}
	w.pendingMu.Unlock()

	sort.Slice(toEmit, func(i, j int) bool {
		return toEmit[i].Time.Before(toEmit[j].Time)
	})
	for _, event := range toEmit {
		w.emitEvent(event)
	}
}

func (w *Watcher) emitEvent(event Event) {
	w.logger.Debug("file event", "path", event.Path, "op", event.Op.String())
	w.safeEmit(event.Op.eventName(), event)
}

// safeEmit emits with panic recovery so a failing handler cannot stop the
// event loop.
func (w *Watcher) safeEmit(name string, value any) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watcher handler panicked", "event", name, "panic", r)
		}
	}()

	err := w.emitter.Emit(name, value)
	if err != nil && !errors.Is(err, emitter.ErrDisposed) {
		w.logger.Error("watcher handler failed", "event", name, "error", err)
	}
}

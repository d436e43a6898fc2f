// Package notify delivers settings change notifications.
//
// Observers subscribe to every change or to a key path. A path subscription
// also receives changes to descendant paths, so subscribing to "editor"
// observes "editor.tabSize". Every subscription is returned as a
// *disposable.Disposable.
package notify

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/dshills/eventkit/disposable"
	"github.com/dshills/eventkit/emitter"
)

const (
	eventAll        = "did-change"
	eventPathPrefix = "did-change:"
)

// ChangeType represents the type of settings change.
type ChangeType int

const (
	// ChangeSet indicates a value was set or updated.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a value was deleted.
	ChangeDelete
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change describes one settings change.
type Change struct {
	// ID correlates log records for the same change.
	ID string

	// Path is the dot-separated key path.
	Path string

	Type     ChangeType
	OldValue any
	NewValue any

	// Source identifies where the change came from.
	Source string
}

// Observer is called when a change occurs.
type Observer func(change Change)

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the notifier's logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// Notifier manages change subscriptions.
type Notifier struct {
	emitter *emitter.Emitter
	logger  *slog.Logger
}

// New creates a Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	n.emitter = emitter.New(emitter.WithLogger(n.logger))
	return n
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) (*disposable.Disposable, error) {
	return emitter.Observe(n.emitter, eventAll, (func(Change))(observer))
}

// SubscribePath registers an observer for changes to path and its
// descendants.
func (n *Notifier) SubscribePath(path string, observer Observer) (*disposable.Disposable, error) {
	if path == "" {
		return n.Subscribe(observer)
	}
	return emitter.Observe(n.emitter, eventPathPrefix+path, (func(Change))(observer))
}

// Notify delivers a change to every matching observer: global observers
// first, then observers of the exact path, then observers of each ancestor
// from nearest to farthest. A missing ID is filled in.
func (n *Notifier) Notify(change Change) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}

	n.logger.Debug("settings changed",
		"id", change.ID,
		"path", change.Path,
		"type", change.Type.String(),
		"source", change.Source)

	if err := n.emitter.Emit(eventAll, change); err != nil {
		return err
	}

	for path := change.Path; path != ""; path = parentPath(path) {
		if err := n.emitter.Emit(eventPathPrefix+path, change); err != nil {
			return err
		}
	}
	return nil
}

// NotifySet is a convenience method for set changes.
func (n *Notifier) NotifySet(path string, oldValue, newValue any, source string) error {
	return n.Notify(Change{
		Path:     path,
		Type:     ChangeSet,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// NotifyDelete is a convenience method for delete changes.
func (n *Notifier) NotifyDelete(path string, oldValue any, source string) error {
	return n.Notify(Change{
		Path:     path,
		Type:     ChangeDelete,
		OldValue: oldValue,
		Source:   source,
	})
}

// ObserverCount returns the number of registered observers.
func (n *Notifier) ObserverCount() int {
	return n.emitter.TotalListenerCount()
}

// Dispose removes every observer. Later subscriptions and notifications
// fail with emitter.ErrDisposed.
func (n *Notifier) Dispose() {
	n.emitter.Dispose()
}

// parentPath returns the parent of a dotted path, or "" for a top-level key.
// Escaped dots (`\.`) are part of a key, not separators.
func parentPath(path string) string {
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '.' && path[i-1] != '\\' {
			return path[:i]
		}
	}
	return ""
}

// Batch collects changes and delivers them together.
type Batch struct {
	notifier *Notifier
	changes  []Change
}

// NewBatch creates a batch for collecting changes.
// A Batch is not safe for concurrent use.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

// Add adds a change to the batch.
func (b *Batch) Add(change Change) {
	b.changes = append(b.changes, change)
}

// Set adds a set change to the batch.
func (b *Batch) Set(path string, oldValue, newValue any, source string) {
	b.Add(Change{
		Path:     path,
		Type:     ChangeSet,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// Delete adds a delete change to the batch.
func (b *Batch) Delete(path string, oldValue any, source string) {
	b.Add(Change{
		Path:     path,
		Type:     ChangeDelete,
		OldValue: oldValue,
		Source:   source,
	})
}

// Commit delivers the batched changes in order. It stops at the first
// observer error; the batch is emptied either way.
func (b *Batch) Commit() error {
	changes := b.changes
	b.changes = nil

	for _, change := range changes {
		if err := b.notifier.Notify(change); err != nil {
			return err
		}
	}
	return nil
}

// Discard clears the batch without delivering it.
func (b *Batch) Discard() {
	b.changes = nil
}

// Len returns the number of pending changes.
func (b *Batch) Len() int {
	return len(b.changes)
}

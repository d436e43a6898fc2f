package disposable

import (
	"reflect"
	"sync"
)

// Disposer is implemented by anything that can be disposed.
type Disposer interface {
	Dispose()
}

// Disposable is a handle to a resource that can be disposed, such as an
// event subscription.
type Disposable struct {
	mu       sync.Mutex
	action   func()
	disposed bool
}

// New returns a Disposable that calls action the first time Dispose is
// called. A nil action is allowed; disposing then only marks the handle.
func New(action func()) *Disposable {
	return &Disposable{action: action}
}

// Dispose performs the release action, indicating that the resource is no
// longer needed. It may be called more than once, but the action only runs
// the first time.
func (d *Disposable) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	action := d.action
	d.action = nil
	d.mu.Unlock()

	if action != nil {
		action()
	}
}

// Disposed reports whether Dispose has been called.
func (d *Disposable) Disposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// IsDisposable reports whether v can be disposed: it must be non-nil and
// implement Disposer. A typed nil pointer, map, slice, channel, func or
// interface is treated as nil.
func IsDisposable(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(Disposer); !ok {
		return false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

package disposable

import (
	"reflect"
	"sync"
)

// Composite aggregates multiple Disposers so they can be disposed as a
// group.
//
// Membership is a set keyed by identity. Comparable members are compared
// with ==. Members that cannot be compared, such as func types with a
// Dispose method or structs holding slices, are compared shallowly:
// slices, maps and funcs by the pointer they hold, everything else by
// value. Func values are identified by their code pointer, so two closures
// created from the same function literal count as one member; wrap them
// with New to keep them apart.
type Composite struct {
	mu          sync.Mutex
	disposables map[Disposer]struct{}
	unhashable  []Disposer
	disposed    bool
}

// NewComposite returns a Composite seeded with the given disposables.
func NewComposite(disposables ...Disposer) *Composite {
	c := &Composite{
		disposables: make(map[Disposer]struct{}),
	}
	c.Add(disposables...)
	return c
}

// Dispose disposes every member exactly once and releases the set.
// If the composite has already been disposed, Dispose has no effect.
//
// Members are visited in no particular order. If a member panics, members
// not yet visited are left undisposed.
func (c *Composite) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	members := c.disposables
	unhashable := c.unhashable
	c.disposables = nil
	c.unhashable = nil
	c.mu.Unlock()

	for d := range members {
		d.Dispose()
	}
	for _, d := range unhashable {
		d.Dispose()
	}
}

// Disposed reports whether Dispose has been called.
func (c *Composite) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Add adds disposables to be disposed when the composite is disposed.
// Adding a member twice has no additional effect, and nil values are
// skipped. Has no effect once the composite has been disposed.
func (c *Composite) Add(disposables ...Disposer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	for _, d := range disposables {
		if !IsDisposable(d) {
			continue
		}
		if hashable(d) {
			c.disposables[d] = struct{}{}
			continue
		}
		if c.indexUnhashable(d) < 0 {
			c.unhashable = append(c.unhashable, d)
		}
	}
}

// Remove removes a previously added disposable without disposing it.
// Removing a value that is not a member is a no-op.
func (c *Composite) Remove(d Disposer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || !IsDisposable(d) {
		return
	}
	if hashable(d) {
		delete(c.disposables, d)
		return
	}
	if i := c.indexUnhashable(d); i >= 0 {
		c.unhashable = append(c.unhashable[:i:i], c.unhashable[i+1:]...)
	}
}

// Clear removes every member. Cleared members are not disposed by this call
// or by a later Dispose.
func (c *Composite) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	clear(c.disposables)
	c.unhashable = nil
}

// Len returns the number of members.
func (c *Composite) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.disposables) + len(c.unhashable)
}

func (c *Composite) indexUnhashable(d Disposer) int {
	v := reflect.ValueOf(d)
	for i, member := range c.unhashable {
		if sameValue(reflect.ValueOf(member), v) {
			return i
		}
	}
	return -1
}

// hashable reports whether d can be used as a map key. Interface fields
// are checked against their dynamic values.
func hashable(d Disposer) bool {
	return reflect.ValueOf(d).Comparable()
}

// sameValue compares a and b like == where possible and by held pointer
// for slices, maps and funcs.
func sameValue(a, b reflect.Value) bool {
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Func, reflect.Map:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return sameValue(a.Elem(), b.Elem())
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !sameValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !sameValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Equal(b)
	}
}

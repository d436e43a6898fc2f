package emitter

import "github.com/dshills/eventkit/disposable"

// Subscribe registers a handler that only receives values of type T.
// Values of any other type, including nil, are skipped.
func Subscribe[T any](e *Emitter, eventName string, fn func(T) error) (*disposable.Disposable, error) {
	if fn == nil {
		return nil, ErrInvalidHandler
	}
	return e.On(eventName, typed(fn))
}

// Observe is like Subscribe for handlers that cannot fail.
func Observe[T any](e *Emitter, eventName string, fn func(T)) (*disposable.Disposable, error) {
	if fn == nil {
		return nil, ErrInvalidHandler
	}
	return e.On(eventName, typed(func(v T) error {
		fn(v)
		return nil
	}))
}

// PreemptObserve is the Preempt counterpart of Observe.
func PreemptObserve[T any](e *Emitter, eventName string, fn func(T)) (*disposable.Disposable, error) {
	if fn == nil {
		return nil, ErrInvalidHandler
	}
	return e.Preempt(eventName, typed(func(v T) error {
		fn(v)
		return nil
	}))
}

func typed[T any](fn func(T) error) Handler {
	return func(value any) error {
		v, ok := value.(T)
		if !ok {
			return nil
		}
		return fn(v)
	}
}

package emitter

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/eventkit/disposable"
)

// Handler receives the value passed to Emit. Returning an error stops the
// emission.
type Handler func(value any) error

// Listen adapts a function that cannot fail to a Handler.
// A nil function yields a nil Handler.
func Listen(fn func(value any)) Handler {
	if fn == nil {
		return nil
	}
	return func(value any) error {
		fn(value)
		return nil
	}
}

// registration is one subscription. Registrations are compared by pointer,
// so subscribing the same function twice yields two independent entries.
type registration struct {
	handler Handler
	once    bool
	fired   atomic.Bool
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithLogger sets the logger that receives subscription lifecycle records
// at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// Emitter invokes handlers registered with On or Preempt when events are
// emitted with Emit.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]*registration
	disposed bool
	logger   *slog.Logger
}

// New creates an emitter.
func New(opts ...Option) *Emitter {
	e := &Emitter{
		handlers: make(map[string][]*registration),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clear removes every handler. Disposables returned for the removed handlers
// stay valid; disposing them is a no-op.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[string][]*registration)
}

// Dispose unsubscribes every handler. Afterwards On, Preempt, Once and Emit
// return ErrDisposed.
func (e *Emitter) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.handlers = nil
	e.disposed = true
	e.mu.Unlock()

	e.logger.Debug("emitter disposed")
}

// Disposed reports whether Dispose has been called.
func (e *Emitter) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// On registers handler to be called whenever eventName is emitted.
// The returned Disposable unsubscribes it.
func (e *Emitter) On(eventName string, handler Handler) (*disposable.Disposable, error) {
	return e.subscribe(eventName, handler, false, false)
}

// Preempt registers handler to be called before every handler already
// subscribed to eventName. A later Preempt can in turn run ahead of it, so
// keep methods built on Preempt private when ordering matters.
func (e *Emitter) Preempt(eventName string, handler Handler) (*disposable.Disposable, error) {
	return e.subscribe(eventName, handler, true, false)
}

// Once registers handler for the next emission of eventName only. The
// subscription is removed before the handler runs.
func (e *Emitter) Once(eventName string, handler Handler) (*disposable.Disposable, error) {
	return e.subscribe(eventName, handler, false, true)
}

func (e *Emitter) subscribe(eventName string, handler Handler, prepend, once bool) (*disposable.Disposable, error) {
	if handler == nil {
		return nil, ErrInvalidHandler
	}

	reg := &registration{handler: handler, once: once}

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil, ErrDisposed
	}

	// Always install a new slice: Emit iterates whatever slice it loaded
	// and must not observe later changes.
	current := e.handlers[eventName]
	next := make([]*registration, 0, len(current)+1)
	if prepend {
		next = append(next, reg)
		next = append(next, current...)
	} else {
		next = append(next, current...)
		next = append(next, reg)
	}
	e.handlers[eventName] = next
	e.mu.Unlock()

	e.logger.Debug("handler subscribed", "event", eventName, "preempt", prepend, "once", once)

	return disposable.New(func() {
		e.off(eventName, reg)
	}), nil
}

// off removes every occurrence of reg from eventName's handlers.
func (e *Emitter) off(eventName string, reg *registration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return
	}

	current, ok := e.handlers[eventName]
	if !ok {
		return
	}

	next := make([]*registration, 0, len(current))
	for _, r := range current {
		if r != reg {
			next = append(next, r)
		}
	}
	e.handlers[eventName] = next

	e.logger.Debug("handler unsubscribed", "event", eventName)
}

// Emit calls the handlers subscribed to eventName, in order, with value.
// It returns the first error a handler returns without calling the handlers
// after it. Emitting an event nobody subscribed to is a no-op.
func (e *Emitter) Emit(eventName string, value any) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	handlers := e.handlers[eventName]
	e.mu.Unlock()

	for _, reg := range handlers {
		if reg.once {
			if !reg.fired.CompareAndSwap(false, true) {
				continue
			}
			e.off(eventName, reg)
		}
		if err := reg.handler(value); err != nil {
			return err
		}
	}
	return nil
}

// ListenerCount returns the number of handlers subscribed to eventName.
func (e *Emitter) ListenerCount(eventName string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[eventName])
}

// TotalListenerCount returns the number of handlers across all events.
func (e *Emitter) TotalListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for _, regs := range e.handlers {
		total += len(regs)
	}
	return total
}

// EventNames returns the sorted names of events that have at least one
// handler.
func (e *Emitter) EventNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.handlers))
	for name, regs := range e.handlers {
		if len(regs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Package emitter provides a synchronous, in-process event emitter.
//
// An Emitter is meant to be embedded privately in a type that exposes an
// event-based API:
//
//	type User struct {
//	    name    string
//	    emitter *emitter.Emitter
//	}
//
//	func (u *User) OnDidChangeName(fn func(name string)) (*disposable.Disposable, error) {
//	    return emitter.Observe(u.emitter, "did-change-name", fn)
//	}
//
//	func (u *User) SetName(name string) error {
//	    if name == u.name {
//	        return nil
//	    }
//	    u.name = name
//	    return u.emitter.Emit("did-change-name", name)
//	}
//
// # Ordering
//
// Handlers for an event name run in registration order. Preempt registers a
// handler ahead of every handler registered so far, so the most recently
// preempted handler runs first.
//
// # Emission
//
// Emit calls each handler in the caller's goroutine, one at a time. The
// first handler that returns an error stops the emission and the error is
// returned to the caller unchanged. Panics are not recovered.
//
// Emit works on the handler list as it was when the call started:
// unsubscribing during an emission does not stop delivery to a handler that
// emission has yet to reach, and handlers subscribed during an emission are
// first called by the next one.
//
// # Thread Safety
//
// An Emitter is safe for concurrent use. Handlers run without the emitter's
// lock held, so they may subscribe, unsubscribe, emit, clear or dispose.
package emitter

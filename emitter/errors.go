package emitter

import "errors"

var (
	// ErrInvalidHandler is returned when subscribing with a nil handler.
	ErrInvalidHandler = errors.New("handler must be callable")

	// ErrDisposed is returned when subscribing to or emitting on a disposed emitter.
	ErrDisposed = errors.New("emitter has been disposed")
)

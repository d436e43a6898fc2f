package disposable

import "github.com/dshills/eventkit/internal/deprecate"

// Off disposes d.
//
// Deprecated: Use Dispose to cancel subscriptions. Off returns
// ErrDeprecatedAPI unless deprecated APIs were enabled for the process.
func (d *Disposable) Off() error {
	if !deprecate.IncludeDeprecatedAPIs() {
		return ErrDeprecatedAPI
	}
	deprecate.Warn("Use Dispose to cancel subscriptions instead of Off")
	d.Dispose()
	return nil
}

package disposable

import "errors"

// ErrDeprecatedAPI is returned by deprecated entry points when the process
// has not enabled them.
var ErrDeprecatedAPI = errors.New("deprecated API is disabled")

// Package deprecate gates legacy API entry points behind a process-wide flag
// and reports their use.
//
// Deprecated methods check IncludeDeprecatedAPIs before doing anything. When
// the flag is enabled they call Warn, which logs one warning per call site.
package deprecate

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	includeDeprecated atomic.Bool
	logger            atomic.Pointer[slog.Logger]

	mu    sync.Mutex
	sites = make(map[string]int)
)

// IncludeDeprecatedAPIs reports whether deprecated entry points are enabled.
func IncludeDeprecatedAPIs() bool {
	return includeDeprecated.Load()
}

// SetIncludeDeprecatedAPIs enables or disables deprecated entry points for
// the whole process.
func SetIncludeDeprecatedAPIs(enabled bool) {
	includeDeprecated.Store(enabled)
}

// SetLogger sets the logger used for deprecation warnings.
// A nil logger restores slog.Default.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func currentLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// Warn records a use of a deprecated API. The call site is the caller of the
// function that invoked Warn. The first use from each site is logged at warn
// level; later uses are only counted.
func Warn(message string) {
	site := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		site = fmt.Sprintf("%s:%d", file, line)
	}

	mu.Lock()
	sites[site]++
	first := sites[site] == 1
	mu.Unlock()

	if first {
		currentLogger().Warn("deprecated API used", "message", message, "site", site)
	}
}

// Count returns the total number of recorded deprecated calls.
func Count() int {
	mu.Lock()
	defer mu.Unlock()

	total := 0
	for _, n := range sites {
		total += n
	}
	return total
}

// Reset forgets every recorded call site.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	sites = make(map[string]int)
}

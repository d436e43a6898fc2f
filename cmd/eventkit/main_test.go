package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventkit/internal/config/watcher"
	"github.com/dshills/eventkit/internal/deprecate"
	"github.com/dshills/eventkit/internal/logging"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func resetDeprecation(t *testing.T) {
	t.Helper()
	deprecate.Reset()
	t.Cleanup(func() {
		deprecate.SetIncludeDeprecatedAPIs(false)
		deprecate.SetLogger(nil)
		deprecate.Reset()
	})
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{
		"-c", "a.toml", "-config", "b.yaml", "-w", "-debounce", "250ms",
		"-log-level", "debug", "-log-format", "json", "-legacy", "c.json",
	}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.toml", "b.yaml", "c.json"}, opts.ConfigPaths)
	assert.True(t, opts.Watch)
	assert.True(t, opts.Legacy)
	assert.Equal(t, 250*time.Millisecond, opts.Debounce)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "json", opts.LogFormat)
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"log level", []string{"-log-level", "loud"}, "invalid log level"},
		{"log format", []string{"-log-format", "xml"}, "invalid log format"},
		{"debounce", []string{"-debounce", "-1s"}, "invalid debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			_, err := parseFlags(tt.args, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-version"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "eventkit dev\n"))
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-bogus"}, &stdout, &stderr))
}

func TestRun_PrintsMergedSettings(t *testing.T) {
	resetDeprecation(t)

	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	user := filepath.Join(dir, "user.yaml")
	require.NoError(t, os.WriteFile(base, []byte("[editor]\ntabSize = 2\n"), 0o644))
	require.NoError(t, os.WriteFile(user, []byte("editor:\n  wordWrap: bounded\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-c", base, "-c", user}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var settings map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &settings))
	editor := settings["editor"].(map[string]any)
	assert.Equal(t, float64(2), editor["tabSize"])
	assert.Equal(t, "bounded", editor["wordWrap"])
	assert.Equal(t, true, editor["insertSpaces"])

	logs := stderr.String()
	assert.Contains(t, logs, `msg="setting changed"`)
	assert.Contains(t, logs, "path=editor.tabSize")
	assert.Contains(t, logs, "app=eventkit")
}

func TestRun_ReportsBrokenFiles(t *testing.T) {
	resetDeprecation(t)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("= nope"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{bad}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stderr.String(), "some settings files failed to load")
}

func TestRun_LegacyTeardownUsesOff(t *testing.T) {
	resetDeprecation(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-legacy"}, &stdout, &stderr)

	require.Equal(t, 0, code)
	assert.Contains(t, stderr.String(), "deprecated API used")
	assert.Equal(t, 1, deprecate.Count())
}

func TestHost_WatchReloads(t *testing.T) {
	resetDeprecation(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"editor": {"tabSize": 2}}`), 0o644))

	var logs syncBuffer
	logger := logging.New(logging.Config{Output: &logs})

	h, err := newHost(options{
		ConfigPaths: []string{path},
		Watch:       true,
		Debounce:    10 * time.Millisecond,
	}, logger)
	require.NoError(t, err)
	defer h.Dispose()

	require.NoError(t, h.start())
	n, err := h.store.GetInt("editor.tabSize")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, os.WriteFile(path, []byte(`{"editor": {"tabSize": 8}}`), 0o644))

	require.Eventually(t, func() bool {
		n, err := h.store.GetInt("editor.tabSize")
		return err == nil && n == 8
	}, 5*time.Second, 10*time.Millisecond)

	assert.Contains(t, logs.String(), "settings file changed")
}

func TestHost_DisposeReleasesEverything(t *testing.T) {
	h, err := newHost(options{Watch: true}, logging.Discard())
	require.NoError(t, err)

	// store, change logger, watcher and five watcher subscriptions
	assert.Equal(t, 8, h.subs.Len())
	h.Dispose()

	assert.True(t, h.subs.Disposed())
	assert.ErrorIs(t, h.watcher.Watch("x.toml"), watcher.ErrClosed)
	assert.Error(t, h.store.Set("editor.tabSize", 1))
}

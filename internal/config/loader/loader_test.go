package loader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFS is an in-memory file system for testing.
type memFS struct {
	files map[string][]byte
	fail  error
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte)}
}

func (m *memFS) add(path, content string) {
	m.files[path] = []byte(content)
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"settings.toml", FormatTOML, false},
		{"settings.TOML", FormatTOML, false},
		{"settings.yaml", FormatYAML, false},
		{"settings.yml", FormatYAML, false},
		{"settings.json", FormatJSON, false},
		{"settings.ini", 0, true},
		{"settings", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "toml", FormatTOML.String())
	assert.Equal(t, "yaml", FormatYAML.String())
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "unknown", Format(42).String())
}

func TestLoader_TOML(t *testing.T) {
	memfs := newMemFS()
	memfs.add("/config.toml", `
[editor]
tabSize = 4
insertSpaces = true
wordWrap = "on"

[ui]
theme = "dark"
`)

	settings, err := New(WithFS(memfs)).Load("/config.toml")
	require.NoError(t, err)

	editor, ok := settings["editor"].(map[string]any)
	require.True(t, ok, "editor section should be a map")
	assert.EqualValues(t, 4, editor["tabSize"])
	assert.Equal(t, true, editor["insertSpaces"])
	assert.Equal(t, "on", editor["wordWrap"])
	assert.Equal(t, "dark", settings["ui"].(map[string]any)["theme"])
}

func TestLoader_YAML(t *testing.T) {
	memfs := newMemFS()
	memfs.add("/config.yaml", `
editor:
  tabSize: 2
  rulers: [80, 120]
keys:
  1: one
`)

	settings, err := New(WithFS(memfs)).Load("/config.yaml")
	require.NoError(t, err)

	editor := settings["editor"].(map[string]any)
	assert.EqualValues(t, 2, editor["tabSize"])
	assert.Len(t, editor["rulers"], 2)

	keys, ok := settings["keys"].(map[string]any)
	require.True(t, ok, "non-string keys should be normalized")
	assert.Equal(t, "one", keys["1"])
}

func TestLoader_JSON(t *testing.T) {
	memfs := newMemFS()
	memfs.add("/config.json", `{"editor": {"tabSize": 8}}`)

	settings, err := New(WithFS(memfs)).Load("/config.json")
	require.NoError(t, err)
	assert.EqualValues(t, 8, settings["editor"].(map[string]any)["tabSize"])
}

func TestLoader_MissingFile(t *testing.T) {
	settings, err := New(WithFS(newMemFS())).Load("/nope.toml")
	assert.NoError(t, err)
	assert.Nil(t, settings)
}

func TestLoader_ReadError(t *testing.T) {
	memfs := newMemFS()
	memfs.fail = errors.New("permission denied")

	_, err := New(WithFS(memfs)).Load("/config.toml")
	require.Error(t, err)
	assert.ErrorIs(t, err, memfs.fail)
	assert.Contains(t, err.Error(), "/config.toml")
}

func TestLoader_EmptyDocument(t *testing.T) {
	memfs := newMemFS()
	memfs.add("/empty.yaml", "")

	settings, err := New(WithFS(memfs)).Load("/empty.yaml")
	require.NoError(t, err)
	assert.NotNil(t, settings)
	assert.Empty(t, settings)
}

func TestLoader_ParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		content  string
		wantLine int
	}{
		{"toml", "/bad.toml", "[editor]\ntabSize = = 4\n", 2},
		{"yaml", "/bad.yaml", "editor: [unclosed\n", 0},
		{"json", "/bad.json", "{\n  \"a\": 1,\n  oops\n}", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memfs := newMemFS()
			memfs.add(tt.path, tt.content)

			_, err := New(WithFS(memfs)).Load(tt.path)
			require.Error(t, err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.path, pe.Path)
			assert.NotNil(t, pe.Unwrap())
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, pe.Line)
			}
			assert.True(t, strings.HasPrefix(pe.Error(), "parse error in "+tt.path))
		})
	}
}

func TestParseError_Error(t *testing.T) {
	assert.Equal(t, "parse error in f at line 2, column 3: bad",
		(&ParseError{Path: "f", Line: 2, Column: 3, Message: "bad"}).Error())
	assert.Equal(t, "parse error in f at line 2: bad",
		(&ParseError{Path: "f", Line: 2, Message: "bad"}).Error())
	assert.Equal(t, "parse error in f: bad",
		(&ParseError{Path: "f", Message: "bad"}).Error())
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"editor": map[string]any{"tabSize": 4, "wordWrap": "off"},
		"ui":     "dark",
	}
	src := map[string]any{
		"editor": map[string]any{"tabSize": 2},
		"ui":     map[string]any{"theme": "light"},
		"new":    true,
	}

	got := DeepMerge(dst, src)

	assert.Equal(t, map[string]any{
		"editor": map[string]any{"tabSize": 2, "wordWrap": "off"},
		"ui":     map[string]any{"theme": "light"},
		"new":    true,
	}, got)

	assert.Equal(t, map[string]any{"a": 1}, DeepMerge(nil, map[string]any{"a": 1}))
}

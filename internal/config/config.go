// Package config holds editor settings and reports changes to them.
//
// Settings are kept as one JSON document addressed by dotted key paths such
// as "editor.tabSize". Files are layered: later files override earlier ones
// key by key. Every effective change, whether from Set, Unset or a reload,
// is delivered to observers registered with OnDidChange or Observe.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/multierr"

	"github.com/dshills/eventkit/disposable"
	"github.com/dshills/eventkit/internal/config/loader"
	"github.com/dshills/eventkit/internal/config/notify"
)

// Sources attached to changes.
const (
	SourceUser   = "user"
	SourceReload = "reload"
)

// Store provides access to settings and their change notifications.
type Store struct {
	mu       sync.RWMutex
	doc      []byte
	defaults map[string]any
	env      *loader.EnvLoader
	paths    []string
	disposed bool

	loader   *loader.Loader
	notifier *notify.Notifier
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLoader sets the loader used by LoadFiles.
func WithLoader(l *loader.Loader) Option {
	return func(s *Store) {
		if l != nil {
			s.loader = l
		}
	}
}

// WithDefaults sets the lowest settings layer.
func WithDefaults(defaults map[string]any) Option {
	return func(s *Store) {
		s.defaults = defaults
	}
}

// WithEnv adds an environment layer applied over every file.
func WithEnv(env *loader.EnvLoader) Option {
	return func(s *Store) {
		s.env = env
	}
}

// New creates a Store holding only the defaults.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		loader: loader.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notifier = notify.New(notify.WithLogger(s.logger))

	doc, err := encode(loader.DeepMerge(nil, s.defaults))
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	s.doc = doc
	return s, nil
}

// Dispose unsubscribes every observer. Later mutations return ErrDisposed.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	s.notifier.Dispose()
}

// Get returns the value at path. Numbers are float64, objects
// map[string]any and arrays []any.
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := gjson.GetBytes(s.doc, path)
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

func (s *Store) result(path string) (gjson.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := gjson.GetBytes(s.doc, path)
	if !r.Exists() {
		return r, ErrSettingNotFound
	}
	return r, nil
}

// GetString returns a string value at the given path.
func (s *Store) GetString(path string) (string, error) {
	r, err := s.result(path)
	if err != nil {
		return "", err
	}
	if r.Type != gjson.String {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(r)}
	}
	return r.Str, nil
}

// GetInt returns an integer value at the given path.
func (s *Store) GetInt(path string) (int, error) {
	r, err := s.result(path)
	if err != nil {
		return 0, err
	}
	if r.Type != gjson.Number {
		return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(r)}
	}
	return int(r.Int()), nil
}

// GetFloat returns a float64 value at the given path.
func (s *Store) GetFloat(path string) (float64, error) {
	r, err := s.result(path)
	if err != nil {
		return 0, err
	}
	if r.Type != gjson.Number {
		return 0, &TypeError{Path: path, Expected: "float64", Actual: typeName(r)}
	}
	return r.Num, nil
}

// GetBool returns a boolean value at the given path.
func (s *Store) GetBool(path string) (bool, error) {
	r, err := s.result(path)
	if err != nil {
		return false, err
	}
	if r.Type != gjson.True && r.Type != gjson.False {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(r)}
	}
	return r.Bool(), nil
}

// GetStringSlice returns a string slice at the given path.
func (s *Store) GetStringSlice(path string) ([]string, error) {
	r, err := s.result(path)
	if err != nil {
		return nil, err
	}
	if !r.IsArray() {
		return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(r)}
	}

	items := r.Array()
	out := make([]string, len(items))
	for i, item := range items {
		if item.Type != gjson.String {
			return nil, &TypeError{Path: path, Expected: "[]string", Actual: "[]" + typeName(item)}
		}
		out[i] = item.Str
	}
	return out, nil
}

// Settings returns a copy of every setting as nested maps.
func (s *Store) Settings() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decode(s.doc)
}

// Paths returns the files passed to the last LoadFiles call.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.paths...)
}

// Set sets the value at path and notifies observers if it changed.
func (s *Store) Set(path string, value any) error {
	if !validPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}

	old := gjson.GetBytes(s.doc, path)
	doc, err := sjson.SetBytes(s.doc, path, value)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("setting %s: %w", path, err)
	}
	updated := gjson.GetBytes(doc, path)
	s.doc = doc
	s.mu.Unlock()

	if old.Exists() && old.Raw == updated.Raw {
		return nil
	}
	return s.notifier.NotifySet(path, resultValue(old), updated.Value(), SourceUser)
}

// Unset removes the value at path and notifies observers if it existed.
func (s *Store) Unset(path string) error {
	if !validPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}

	old := gjson.GetBytes(s.doc, path)
	if !old.Exists() {
		s.mu.Unlock()
		return nil
	}
	doc, err := sjson.DeleteBytes(s.doc, path)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	s.doc = doc
	s.mu.Unlock()

	return s.notifier.NotifyDelete(path, old.Value(), SourceUser)
}

// LoadFiles replaces the settings with the defaults overlaid by each file
// in order, then by the environment layer if one is set. Missing files are skipped. Files that fail to load are skipped
// too and their errors are returned together; the remaining layers are
// still applied. Observers receive one change per changed leaf path.
func (s *Store) LoadFiles(paths ...string) error {
	merged := loader.DeepMerge(nil, cloneMap(s.defaults))

	var errs error
	for _, path := range paths {
		settings, err := s.loader.Load(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if settings == nil {
			s.logger.Debug("settings file not found", "path", path)
			continue
		}
		merged = loader.DeepMerge(merged, settings)
	}
	if s.env != nil {
		merged = loader.DeepMerge(merged, s.env.Load())
	}

	doc, err := encode(merged)
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("encoding settings: %w", err))
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	previous := s.doc
	s.doc = doc
	s.paths = append([]string(nil), paths...)
	s.mu.Unlock()

	s.logger.Info("settings loaded", "files", len(paths), "failed", len(multierr.Errors(errs)))

	return multierr.Append(errs, s.notifyDiff(previous, doc))
}

// Reload loads the files from the last LoadFiles call again.
func (s *Store) Reload() error {
	return s.LoadFiles(s.Paths()...)
}

// notifyDiff reports every leaf path whose value differs between two
// documents, in sorted path order.
func (s *Store) notifyDiff(before, after []byte) error {
	oldLeaves := make(map[string]any)
	newLeaves := make(map[string]any)
	flatten(decode(before), "", oldLeaves)
	flatten(decode(after), "", newLeaves)

	batch := s.notifier.NewBatch()
	for _, path := range sortedKeys(oldLeaves) {
		if _, ok := newLeaves[path]; !ok {
			batch.Delete(path, oldLeaves[path], SourceReload)
		}
	}
	for _, path := range sortedKeys(newLeaves) {
		oldValue, existed := oldLeaves[path]
		if existed && reflect.DeepEqual(oldValue, newLeaves[path]) {
			continue
		}
		batch.Set(path, oldValue, newLeaves[path], SourceReload)
	}
	return batch.Commit()
}

// OnDidChange calls fn for every change to path or one of its
// descendants. An empty path observes every change.
func (s *Store) OnDidChange(path string, fn notify.Observer) (*disposable.Disposable, error) {
	if path != "" && !validPath(path) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return s.notifier.SubscribePath(path, fn)
}

// Observe calls fn with the current value at path and again with the new
// value whenever path or one of its descendants changes. The value is nil
// while the setting is absent.
func (s *Store) Observe(path string, fn func(value any)) (*disposable.Disposable, error) {
	if fn == nil {
		return nil, fmt.Errorf("observe %s: nil callback", path)
	}
	sub, err := s.OnDidChange(path, func(notify.Change) {
		v, _ := s.Get(path)
		fn(v)
	})
	if err != nil {
		return nil, err
	}

	v, _ := s.Get(path)
	fn(v)
	return sub, nil
}

func resultValue(r gjson.Result) any {
	if !r.Exists() {
		return nil
	}
	return r.Value()
}

func encode(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func decode(doc []byte) map[string]any {
	m, ok := gjson.ParseBytes(doc).Value().(map[string]any)
	if !ok {
		return make(map[string]any)
	}
	return m
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	doc, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return decode(doc)
}

func typeName(r gjson.Result) string {
	switch {
	case r.IsArray():
		return "array"
	case r.IsObject():
		return "object"
	}
	switch r.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "bool"
	case gjson.Null:
		return "null"
	default:
		return "unknown"
	}
}

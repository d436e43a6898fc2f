package main

import (
	"fmt"
	"log/slog"

	"github.com/dshills/eventkit/disposable"
	"github.com/dshills/eventkit/internal/config"
	"github.com/dshills/eventkit/internal/config/loader"
	"github.com/dshills/eventkit/internal/config/notify"
	"github.com/dshills/eventkit/internal/config/watcher"
	"github.com/dshills/eventkit/internal/deprecate"
	"github.com/dshills/eventkit/internal/logging"
)

// envPrefix marks environment variables that override settings files.
const envPrefix = "EVENTKIT_"

// host wires the settings store to its files and owns every subscription.
type host struct {
	opts    options
	logger  *slog.Logger
	store   *config.Store
	watcher *watcher.Watcher
	subs    *disposable.Composite
}

func defaultSettings() map[string]any {
	return map[string]any{
		"editor": map[string]any{
			"tabSize":      4,
			"insertSpaces": true,
			"wordWrap":     "off",
		},
		"files": map[string]any{
			"autoSave": "off",
		},
	}
}

func newHost(opts options, logger *slog.Logger) (*host, error) {
	store, err := config.New(
		config.WithLogger(logging.Component(logger, "config")),
		config.WithDefaults(defaultSettings()),
		config.WithEnv(loader.NewEnvLoader(envPrefix)),
	)
	if err != nil {
		return nil, err
	}

	h := &host{
		opts:   opts,
		logger: logger,
		store:  store,
		subs:   disposable.NewComposite(store),
	}

	sub, err := store.OnDidChange("", h.logChange)
	if err != nil {
		h.Dispose()
		return nil, err
	}
	h.track(sub)

	if opts.Watch {
		w, err := watcher.New(
			watcher.WithDebounce(opts.Debounce),
			watcher.WithLogger(logging.Component(logger, "watcher")),
		)
		if err != nil {
			h.Dispose()
			return nil, err
		}
		h.watcher = w
		h.subs.Add(w)

		if err := h.subscribeWatcher(); err != nil {
			h.Dispose()
			return nil, err
		}
	}

	return h, nil
}

// track adds a subscription to the host's composite. With deprecated APIs
// enabled it is torn down through the legacy Off call instead.
func (h *host) track(sub *disposable.Disposable) {
	if !deprecate.IncludeDeprecatedAPIs() {
		h.subs.Add(sub)
		return
	}
	h.subs.Add(disposable.New(func() {
		if err := sub.Off(); err != nil {
			h.logger.Error("unsubscribing", "error", err)
		}
	}))
}

func (h *host) subscribeWatcher() error {
	reload := func(e watcher.Event) {
		h.logger.Info("settings file changed", "path", e.Path, "op", e.Op.String())
		if err := h.store.Reload(); err != nil {
			h.logger.Error("reloading settings", "error", err)
		}
	}

	subscribe := []func(func(watcher.Event)) (*disposable.Disposable, error){
		h.watcher.OnDidChange,
		h.watcher.OnDidCreate,
		h.watcher.OnDidDelete,
		h.watcher.OnDidRename,
	}
	for _, on := range subscribe {
		sub, err := on(reload)
		if err != nil {
			return fmt.Errorf("subscribing to watcher: %w", err)
		}
		h.track(sub)
	}

	sub, err := h.watcher.OnDidFail(func(err error) {
		h.logger.Error("watching settings files", "error", err)
	})
	if err != nil {
		return fmt.Errorf("subscribing to watcher: %w", err)
	}
	h.track(sub)
	return nil
}

// start loads the settings files and begins watching them.
func (h *host) start() error {
	err := h.store.LoadFiles(h.opts.ConfigPaths...)
	if h.watcher != nil {
		if werr := h.watcher.WatchAll(h.opts.ConfigPaths...); werr != nil {
			h.logger.Warn("some settings files cannot be watched", "error", werr)
		}
	}
	return err
}

func (h *host) logChange(c notify.Change) {
	h.logger.Info("setting changed",
		"id", c.ID,
		"path", c.Path,
		"type", c.Type.String(),
		"source", c.Source,
		"old", c.OldValue,
		"new", c.NewValue)
}

// Dispose releases the watcher, the store and every subscription.
func (h *host) Dispose() {
	h.subs.Dispose()
}

// Package main is the entry point for eventkit, a settings host that loads
// layered configuration files, watches them and logs every setting change.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/eventkit/internal/deprecate"
	"github.com/dshills/eventkit/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	ConfigPaths []string
	LogLevel    string
	LogFormat   string
	Watch       bool
	Debounce    time.Duration
	Legacy      bool
	ShowVersion bool
}

// pathList is a repeatable string flag.
type pathList []string

func (p *pathList) String() string {
	return strings.Join(*p, ",")
}

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.ShowVersion {
		fmt.Fprintf(stdout, "eventkit %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(opts.LogLevel)
	logCfg.Format = logging.ParseFormat(opts.LogFormat)
	logCfg.Output = stderr
	logger := logging.New(logCfg)
	deprecate.SetLogger(logger)
	deprecate.SetIncludeDeprecatedAPIs(opts.Legacy)

	h, err := newHost(opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer h.Dispose()

	if err := h.start(); err != nil {
		logger.Warn("some settings files failed to load", "error", err)
	}

	if !opts.Watch {
		return printSettings(stdout, h.store.Settings(), stderr)
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("watching settings files", "files", h.watcher.WatchedFiles())
	<-ctx.Done()
	logger.Info("shutting down")
	return 0
}

func printSettings(w io.Writer, settings map[string]any, stderr io.Writer) int {
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(w, string(out))
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	var configs pathList

	fs := flag.NewFlagSet("eventkit", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Var(&configs, "config", "Path to a settings file (repeatable; later files win)")
	fs.Var(&configs, "c", "Path to a settings file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.LogFormat, "log-format", "text", "Log format (text, json)")
	fs.BoolVar(&opts.Watch, "watch", false, "Watch settings files and reload on change")
	fs.BoolVar(&opts.Watch, "w", false, "Watch settings files (shorthand)")
	fs.DurationVar(&opts.Debounce, "debounce", 100*time.Millisecond, "Coalesce file events within this window")
	fs.BoolVar(&opts.Legacy, "legacy", false, "Enable deprecated APIs")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.ShowVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "eventkit - layered settings host\n\n")
		fmt.Fprintf(stderr, "Usage: eventkit [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  eventkit -c defaults.toml -c user.yaml     Print merged settings\n")
		fmt.Fprintf(stderr, "  eventkit -w -c settings.toml               Log changes as the file is edited\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	// Validate log level
	switch strings.ToLower(opts.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return opts, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", opts.LogLevel)
	}

	switch strings.ToLower(opts.LogFormat) {
	case "text", "json":
	default:
		return opts, fmt.Errorf("invalid log format %q (must be text or json)", opts.LogFormat)
	}

	if opts.Debounce < 0 {
		return opts, fmt.Errorf("invalid debounce %v", opts.Debounce)
	}

	// Remaining arguments are settings files too
	opts.ConfigPaths = append([]string(configs), fs.Args()...)
	return opts, nil
}

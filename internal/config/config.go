// Package config parses command-line settings for the watchme commands.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"watchme/internal/logging"
	"watchme/internal/view"
)

// WatchDirName is the fixed subdirectory of the working directory that is
// watched and served.
const WatchDirName = "watch-me"

// PreviewCommand is the command that also accepts --addr.
const PreviewCommand = "watchme-preview"

const (
	defaultMaxWatches  = 4096
	defaultPreviewAddr = "127.0.0.1:57420"
)

type Config struct {
	WatchRoot   string
	ReloadMode  view.Mode
	Debounce    time.Duration
	MaxWatches  int
	PreviewAddr string
	Verbose     bool
	Quiet       bool
	ShowVersion bool
	Sources     map[string]configSource
}

type configSource string

const (
	sourceDefault configSource = "default"
	sourceFlag    configSource = "flag"
)

// ResolveWatchRoot returns the absolute watch root for workDir.
func ResolveWatchRoot(workDir string) (string, error) {
	if workDir == "" {
		return "", errors.New("working directory is required")
	}
	root, err := filepath.Abs(filepath.Join(workDir, WatchDirName))
	if err != nil {
		return "", fmt.Errorf("resolve watch root: %w", err)
	}
	return root, nil
}

// Load parses args for the named command. The watch root is derived from
// the process working directory.
func Load(command string, args []string) (Config, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("resolve working directory: %w", err)
	}
	return load(command, args, workDir, os.Stderr)
}

func load(command string, args []string, workDir string, usage io.Writer) (Config, error) {
	if args == nil {
		args = []string{}
	}
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	reloadMode := fs.String("reload-mode", string(view.ModeContinuous), "Reload on every change (continuous) or only the first (once)")
	debounce := fs.Duration("debounce", 0, "Collapse changes within this quiet period into one reload (0 disables)")
	maxWatches := fs.Int("max-watches", defaultMaxWatches, "Max watched directories")
	var previewAddr *string
	if command == PreviewCommand {
		previewAddr = fs.String("addr", defaultPreviewAddr, "Preview server listen address")
	}
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	quiet := fs.Bool("quiet", false, "Reduce logging to warnings")
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		if usage == nil {
			return
		}
		fmt.Fprintf(usage, "Usage: %s [flags]\n\nServes ./%s/index.html and reloads it on change.\n\nFlags:\n", command, WatchDirName)
		fs.SetOutput(usage)
		fs.PrintDefaults()
		fs.SetOutput(io.Discard)
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	set := make(map[string]bool)
	fs.Visit(func(flagValue *flag.Flag) {
		set[flagValue.Name] = true
	})

	cfg := Config{
		Verbose:     *verbose,
		Quiet:       *quiet,
		ShowVersion: *showVersion,
		Sources:     make(map[string]configSource),
	}
	for _, name := range []string{"reload-mode", "debounce", "max-watches", "addr", "verbose", "quiet"} {
		if fs.Lookup(name) == nil {
			continue
		}
		cfg.Sources[name] = sourceDefault
		if set[name] {
			cfg.Sources[name] = sourceFlag
		}
	}

	mode, err := view.ParseMode(*reloadMode)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --reload-mode: %w", err)
	}
	cfg.ReloadMode = mode

	if *debounce < 0 {
		return Config{}, fmt.Errorf("invalid --debounce: must be >= 0")
	}
	cfg.Debounce = *debounce

	if *maxWatches <= 0 {
		return Config{}, fmt.Errorf("invalid --max-watches: must be > 0")
	}
	cfg.MaxWatches = *maxWatches

	if previewAddr != nil {
		addr := strings.TrimSpace(*previewAddr)
		if addr == "" {
			return Config{}, fmt.Errorf("invalid --addr: value cannot be empty")
		}
		cfg.PreviewAddr = addr
	}

	if cfg.Verbose && cfg.Quiet {
		return Config{}, fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}

	root, err := ResolveWatchRoot(workDir)
	if err != nil {
		return Config{}, err
	}
	cfg.WatchRoot = root
	return cfg, nil
}

// LogLevel maps the verbosity flags to a logger level.
func (cfg Config) LogLevel() logging.Level {
	switch {
	case cfg.Verbose:
		return logging.LevelDebug
	case cfg.Quiet:
		return logging.LevelWarning
	default:
		return logging.LevelInfo
	}
}

// LogStartupFlags records the flags that were set explicitly.
func LogStartupFlags(logger *logging.Logger, cfg Config) {
	if logger == nil || cfg.Sources == nil {
		return
	}
	var flags []string
	if cfg.Sources["reload-mode"] == sourceFlag {
		flags = append(flags, fmt.Sprintf("--reload-mode %s", cfg.ReloadMode))
	}
	if cfg.Sources["debounce"] == sourceFlag {
		flags = append(flags, fmt.Sprintf("--debounce %s", cfg.Debounce))
	}
	if cfg.Sources["max-watches"] == sourceFlag {
		flags = append(flags, fmt.Sprintf("--max-watches %d", cfg.MaxWatches))
	}
	if cfg.Sources["addr"] == sourceFlag {
		flags = append(flags, fmt.Sprintf("--addr %q", cfg.PreviewAddr))
	}
	if cfg.Sources["verbose"] == sourceFlag {
		flags = append(flags, fmt.Sprintf("--verbose=%t", cfg.Verbose))
	}
	if cfg.Sources["quiet"] == sourceFlag {
		flags = append(flags, fmt.Sprintf("--quiet=%t", cfg.Quiet))
	}
	if len(flags) == 0 {
		return
	}
	logger.Debug("starting with flags", map[string]string{
		"flags": strings.Join(flags, " "),
	})
}

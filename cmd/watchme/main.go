package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"watchme"
	"watchme/internal/config"
	"watchme/internal/desktop"
	"watchme/internal/logging"
	"watchme/internal/shell"
	"watchme/internal/version"

	"github.com/wailsapp/wails/v2"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load("watchme", args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if cfg.ShowVersion {
		fmt.Fprintln(os.Stdout, version.Line("watchme"))
		return 0
	}

	logger := logging.NewLogger(logging.NewLogBuffer(logging.DefaultBufferSize), cfg.LogLevel())
	config.LogStartupFlags(logger, cfg)

	fallback, err := fs.Sub(watchme.EmbeddedFallbackFS, "fallback")
	if err != nil {
		logger.Error("embedded fallback assets missing", map[string]string{
			"error": err.Error(),
		})
		return 1
	}

	session, err := shell.Prepare(context.Background(), shell.Options{
		WatchRoot:  cfg.WatchRoot,
		Mode:       cfg.ReloadMode,
		Debounce:   cfg.Debounce,
		MaxWatches: cfg.MaxWatches,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("live reload setup failed", map[string]string{
			"root":  cfg.WatchRoot,
			"error": err.Error(),
		})
		return 1
	}
	defer session.Close()

	app := desktop.NewApp(session, logger)
	if err := wails.Run(desktop.Options(app, fallback)); err != nil {
		logger.Error("wails run failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	return 0
}

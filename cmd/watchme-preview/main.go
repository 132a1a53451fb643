package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"

	"watchme"
	"watchme/internal/config"
	"watchme/internal/logging"
	"watchme/internal/preview"
	"watchme/internal/shell"
	"watchme/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(config.PreviewCommand, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if cfg.ShowVersion {
		fmt.Fprintln(os.Stdout, version.Line("watchme-preview"))
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := shell.Prepare(ctx, shell.Options{
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

	listener, err := net.Listen("tcp", cfg.PreviewAddr)
	if err != nil {
		logger.Error("preview listen failed", map[string]string{
			"addr":  cfg.PreviewAddr,
			"error": err.Error(),
		})
		return 1
	}

	hub := preview.NewHub(logger)
	defer hub.Close()
	session.Attach(hub)

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopper := previewStopper{
		logger: logger,
		drain:  cancel,
		force: func() {
			hub.Close()
			_ = session.Close()
			exit(forcedExitCode)
		},
	}
	stopCtx, stopWatching := context.WithCancel(context.Background())
	defer stopWatching()
	go stopper.watch(stopCtx, signalCh)

	handler := preview.NewHandler(session.Router(), fallback, hub)
	if err := preview.Serve(ctx, listener, handler, logger); err != nil {
		logger.Error("preview server stopped", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	return 0
}

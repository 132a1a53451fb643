// Package view owns the rendered view handle and applies reload signals to
// it. The controller goroutine is the only caller of Handle.Reload.
package view

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"watchme/internal/logging"
	"watchme/internal/reload"
)

// Handle is the native rendered surface.
type Handle interface {
	Reload() error
}

// Receiver is the consuming end of the reload channel.
type Receiver interface {
	Recv(ctx context.Context) (reload.Signal, error)
}

type Mode string

const (
	// ModeContinuous reloads once per signal until the channel closes or the
	// context is cancelled.
	ModeContinuous Mode = "continuous"
	// ModeOnce performs a single receive and at most one reload.
	ModeOnce Mode = "once"
)

// ParseMode accepts "continuous" or "once".
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeContinuous:
		return ModeContinuous, nil
	case ModeOnce:
		return ModeOnce, nil
	default:
		return "", fmt.Errorf("unknown reload mode %q", value)
	}
}

type Options struct {
	Mode   Mode
	Logger *logging.Logger
}

type Controller struct {
	handle  Handle
	mode    Mode
	logger  *logging.Logger
	reloads atomic.Uint64
	failed  atomic.Uint64
	running atomic.Bool
}

func NewController(handle Handle, options Options) *Controller {
	mode := options.Mode
	if mode == "" {
		mode = ModeContinuous
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Controller{
		handle: handle,
		mode:   mode,
		logger: logger.Component("view"),
	}
}

// Mode reports the consumption mode.
func (controller *Controller) Mode() Mode {
	return controller.mode
}

// Reloads reports how many reload instructions were issued, including
// failed ones.
func (controller *Controller) Reloads() uint64 {
	return controller.reloads.Load()
}

// Failures reports how many reload instructions returned an error.
func (controller *Controller) Failures() uint64 {
	return controller.failed.Load()
}

// Run consumes signals from source and reloads the view. A closed channel or
// a cancelled context ends Run without error.
func (controller *Controller) Run(ctx context.Context, source Receiver) error {
	if source == nil {
		return errors.New("reload source is required")
	}
	if !controller.running.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}
	defer controller.running.Store(false)
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		signal, err := source.Recv(ctx)
		if err != nil {
			if errors.Is(err, reload.ErrClosed) {
				controller.logger.Debug("reload channel closed", nil)
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		controller.apply(signal)
		if controller.mode == ModeOnce {
			controller.logger.Info("single reload consumed; further changes are not applied", nil)
			return nil
		}
	}
}

func (controller *Controller) apply(signal reload.Signal) {
	count := controller.reloads.Add(1)
	fields := map[string]string{
		"cause":  signal.Cause,
		"op":     signal.Op,
		"reload": strconv.FormatUint(count, 10),
	}
	controller.logger.Info("file change detected; reloading view", fields)

	if controller.handle == nil {
		controller.failed.Add(1)
		controller.logger.Warn("reload failed", map[string]string{"error": "view handle is nil"})
		return
	}
	if err := controller.handle.Reload(); err != nil {
		controller.failed.Add(1)
		controller.logger.Warn("reload failed", map[string]string{
			"cause": signal.Cause,
			"error": err.Error(),
		})
	}
}

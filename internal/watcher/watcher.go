package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"watchme/internal/logging"
	"watchme/internal/reload"

	"github.com/fsnotify/fsnotify"
)

const defaultMaxWatches = 4096

var newMonitor = fsnotify.NewWatcher

// New creates the underlying monitor. It does not register any path.
func New(options Options) (*Watcher, error) {
	if options.Root == "" {
		return nil, fmt.Errorf("%w: root is required", ErrConstruction)
	}
	root, err := filepath.Abs(options.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}

	monitor, err := newMonitor()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	maxWatches := options.MaxWatches
	if maxWatches <= 0 {
		maxWatches = defaultMaxWatches
	}

	instance := &Watcher{
		root:       root,
		monitor:    monitor,
		logger:     logger.Component("watcher"),
		maxWatches: maxWatches,
		watched:    make(map[string]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if options.Debounce > 0 {
		instance.debouncer = newDebouncer(options.Debounce, instance.forward)
	}
	return instance, nil
}

// Root returns the absolute watch root.
func (watcher *Watcher) Root() string {
	return watcher.root
}

// State reports the lifecycle state.
func (watcher *Watcher) State() State {
	return State(watcher.state.Load())
}

// Start registers the root tree and runs the event loop on its own goroutine.
// Signals go to sender until ctx is cancelled or Close is called.
func (watcher *Watcher) Start(ctx context.Context, sender Sender) error {
	if watcher == nil {
		return fmt.Errorf("%w: watcher is nil", ErrConstruction)
	}
	if sender == nil {
		return fmt.Errorf("%w: sender is required", ErrRegistration)
	}
	if !watcher.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(watcher.root)
	if err != nil {
		return watcher.fail(fmt.Errorf("%w: %w", ErrRegistration, err))
	}
	if !info.IsDir() {
		return watcher.fail(fmt.Errorf("%w: %s is not a directory", ErrRegistration, watcher.root))
	}
	if _, err := watcher.addTree(watcher.root); err != nil {
		return watcher.fail(fmt.Errorf("%w: %w", ErrRegistration, err))
	}

	watcher.mutex.Lock()
	watcher.sender = sender
	active := len(watcher.watched)
	watcher.mutex.Unlock()
	watcher.state.Store(int32(StateWatching))

	watcher.logger.Info("watching directory", map[string]string{
		"root":           watcher.root,
		"active_watches": strconv.Itoa(active),
	})
	go watcher.run(ctx, watcher.monitor.Events, watcher.monitor.Errors)
	return nil
}

func (watcher *Watcher) fail(err error) error {
	watcher.state.Store(int32(StateFailed))
	watcher.logger.Error("watcher failed", map[string]string{
		"root":  watcher.root,
		"error": err.Error(),
	})
	_ = watcher.monitor.Close()
	watcher.finish()
	return err
}

// Done is closed once the event loop has exited.
func (watcher *Watcher) Done() <-chan struct{} {
	return watcher.done
}

// Close stops the event loop and releases the monitor.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}
	var err error
	watcher.stopOnce.Do(func() {
		close(watcher.stop)
		if watcher.debouncer != nil {
			watcher.debouncer.stop()
		}
		if watcher.State() != StateWatching {
			watcher.finish()
		}
		err = watcher.monitor.Close()
	})
	return err
}

func (watcher *Watcher) finish() {
	watcher.finishOnce.Do(func() {
		close(watcher.done)
	})
}

func (watcher *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer func() {
		if watcher.State() == StateWatching {
			watcher.state.Store(int32(StateStopped))
		}
		watcher.finish()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.stop:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			watcher.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			watcher.handleError(err)
		}
	}
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	if event.Name == "" || event.Op == 0 {
		watcher.skipped.Add(1)
		watcher.logger.Warn("event translation failed", map[string]string{
			"path": event.Name,
			"op":   event.Op.String(),
		})
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := watcher.addTree(event.Name); err != nil {
				watcher.logger.Warn("watch add failed", map[string]string{
					"path":  event.Name,
					"error": err.Error(),
				})
			}
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		watcher.forget(event.Name)
	}
	if event.Has(fsnotify.Rename) {
		watcher.resync()
	}

	change := ChangeEvent{
		Path:      event.Name,
		Op:        event.Op,
		Timestamp: time.Now().UTC(),
	}
	watcher.logger.Debug("change observed", map[string]string{
		"path": change.Path,
		"op":   change.Op.String(),
	})

	if watcher.debouncer != nil {
		if watcher.debouncer.trigger(change) {
			watcher.coalesced.Add(1)
		}
		return
	}
	watcher.forward(change)
}

func (watcher *Watcher) forward(change ChangeEvent) {
	watcher.mutex.Lock()
	sender := watcher.sender
	watcher.mutex.Unlock()
	if sender == nil {
		return
	}

	err := sender.Send(reload.Signal{
		Cause: change.Path,
		Op:    change.Op.String(),
		At:    change.Timestamp,
	})
	if err != nil {
		watcher.dropped.Add(1)
		watcher.logger.Debug("reload signal dropped", map[string]string{
			"path":  change.Path,
			"error": err.Error(),
		})
		return
	}
	watcher.forwarded.Add(1)
}

func (watcher *Watcher) handleError(err error) {
	if err == nil {
		return
	}
	watcher.errors.Add(1)
	watcher.logger.Warn("watch error", map[string]string{
		"error": err.Error(),
	})
}

// Metrics reports current watcher counters.
func (watcher *Watcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	watcher.mutex.Lock()
	active := len(watcher.watched)
	watcher.mutex.Unlock()
	return Metrics{
		ActiveWatches:   active,
		EventsForwarded: watcher.forwarded.Load(),
		EventsSkipped:   watcher.skipped.Load(),
		EventsCoalesced: watcher.coalesced.Load(),
		SendFailures:    watcher.dropped.Load(),
		Errors:          watcher.errors.Load(),
	}
}

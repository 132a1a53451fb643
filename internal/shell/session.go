// Package shell wires the watch, notify and reload pipeline together.
//
// Prepare does all fallible setup and returns the failure to the caller, so a
// command can exit before any window is shown. Attach hands the view to the
// controller once the native surface exists.
package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"watchme/internal/assets"
	"watchme/internal/logging"
	"watchme/internal/reload"
	"watchme/internal/view"
	"watchme/internal/watcher"
)

const (
	StageConstruct = "construct_watcher"
	StageRegister  = "register_watch"
)

// SetupError reports which setup stage failed.
type SetupError struct {
	Stage string
	Err   error
}

func (e SetupError) Error() string {
	if e.Err == nil {
		return e.Stage
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e SetupError) Unwrap() error {
	return e.Err
}

type Options struct {
	WatchRoot  string
	Mode       view.Mode
	Debounce   time.Duration
	MaxWatches int
	Logger     *logging.Logger
}

type Session struct {
	root    string
	mode    view.Mode
	logger  *logging.Logger
	channel *reload.Channel
	watcher *watcher.Watcher
	router  *assets.Router

	ctx    context.Context
	cancel context.CancelFunc

	mutex          sync.Mutex
	controller     *view.Controller
	controllerDone chan struct{}
	closeOnce      sync.Once
}

// Prepare builds the reload channel, the asset router and the watcher, and
// starts watching. The returned session runs until ctx is cancelled or Close
// is called.
func Prepare(ctx context.Context, options Options) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if options.WatchRoot == "" {
		return nil, SetupError{Stage: StageConstruct, Err: errors.New("watch root is required")}
	}

	fsWatcher, err := watcher.New(watcher.Options{
		Root:       options.WatchRoot,
		Logger:     logger,
		Debounce:   options.Debounce,
		MaxWatches: options.MaxWatches,
	})
	if err != nil {
		return nil, SetupError{Stage: StageConstruct, Err: err}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	channel := reload.NewChannel()
	if err := fsWatcher.Start(sessionCtx, channel); err != nil {
		cancel()
		_ = fsWatcher.Close()
		return nil, SetupError{Stage: StageRegister, Err: err}
	}

	mode := options.Mode
	if mode == "" {
		mode = view.ModeContinuous
	}
	return &Session{
		root:    fsWatcher.Root(),
		mode:    mode,
		logger:  logger.Component("shell"),
		channel: channel,
		watcher: fsWatcher,
		router:  assets.NewRootRouter(fsWatcher.Root(), logger),
		ctx:     sessionCtx,
		cancel:  cancel,
	}, nil
}

func (s *Session) WatchRoot() string {
	return s.root
}

// Router serves the root document for the asset server.
func (s *Session) Router() *assets.Router {
	return s.router
}

func (s *Session) Watcher() *watcher.Watcher {
	return s.watcher
}

// Attach starts the controller for handle. Only the first call has effect.
func (s *Session) Attach(handle view.Handle) *view.Controller {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.controller != nil {
		return s.controller
	}
	controller := view.NewController(handle, view.Options{
		Mode:   s.mode,
		Logger: s.logger,
	})
	done := make(chan struct{})
	s.controller = controller
	s.controllerDone = done

	go func() {
		defer close(done)
		if err := controller.Run(s.ctx, s.channel); err != nil {
			s.logger.Warn("view controller stopped", map[string]string{
				"error": err.Error(),
			})
		}
	}()
	s.logger.Info("view attached", map[string]string{
		"mode": string(s.mode),
	})
	return controller
}

// Reloads reports reload instructions issued so far.
func (s *Session) Reloads() uint64 {
	s.mutex.Lock()
	controller := s.controller
	s.mutex.Unlock()
	if controller == nil {
		return 0
	}
	return controller.Reloads()
}

// Wait blocks until the controller has returned and the watcher has stopped.
func (s *Session) Wait() {
	s.mutex.Lock()
	done := s.controllerDone
	s.mutex.Unlock()
	if done != nil {
		<-done
	}
	<-s.watcher.Done()
}

// Close cancels the session, closes the reload channel and releases the
// watcher.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.channel.Close()
		err = s.watcher.Close()
	})
	return err
}

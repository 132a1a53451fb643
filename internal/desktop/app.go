package desktop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"watchme/internal/logging"
	"watchme/internal/shell"
	"watchme/internal/version"

	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	WindowTitle  = "Watch Me"
	WindowWidth  = 1000
	WindowHeight = 700
)

// ErrNotStarted is returned when the window is asked to reload before the
// native runtime has started.
var ErrNotStarted = errors.New("window not started")

var reloadWindow = runtime.WindowReload

type App struct {
	mutex   sync.Mutex
	ctx     context.Context
	session *shell.Session
	logger  *logging.Logger
}

func NewApp(session *shell.Session, logger *logging.Logger) *App {
	if logger == nil {
		logger = logging.Discard()
	}
	return &App{
		session: session,
		logger:  logger.Component("desktop"),
	}
}

// Startup records the runtime context and hands the window to the reload
// controller.
func (a *App) Startup(ctx context.Context) {
	a.mutex.Lock()
	a.ctx = ctx
	a.mutex.Unlock()

	if a.session != nil {
		a.session.Attach(&Window{app: a})
	}
	a.logger.Info("window started", map[string]string{
		"title": WindowTitle,
	})
}

func (a *App) Shutdown(ctx context.Context) {
	if a.session == nil {
		return
	}
	if err := a.session.Close(); err != nil {
		a.logger.Warn("session shutdown failed", map[string]string{
			"error": err.Error(),
		})
	}
}

func (a *App) BeforeClose(ctx context.Context) bool {
	return false
}

// Greet is callable from the rendered document.
func (a *App) Greet(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from Go!", name)
}

func (a *App) GetVersion() string {
	return version.Version
}

func (a *App) runtimeContext() context.Context {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.ctx
}

// Window is the native view handle. Reload is only invoked by the view
// controller.
type Window struct {
	app *App
}

func (w *Window) Reload() error {
	if w == nil || w.app == nil {
		return ErrNotStarted
	}
	ctx := w.app.runtimeContext()
	if ctx == nil {
		return ErrNotStarted
	}
	reloadWindow(ctx)
	return nil
}

// Options builds the Wails application options. Requests for the virtual
// root are served from disk by the session router; everything else, and the
// root when it cannot be read, comes from fallback.
func Options(app *App, fallback fs.FS) *options.App {
	assetOptions := &assetserver.Options{
		Assets: fallback,
	}
	if app.session != nil {
		assetOptions.Middleware = app.session.Router().Middleware
	}
	return &options.App{
		Title:         WindowTitle,
		Width:         WindowWidth,
		Height:        WindowHeight,
		AssetServer:   assetOptions,
		OnStartup:     app.Startup,
		OnShutdown:    app.Shutdown,
		OnBeforeClose: app.BeforeClose,
		Bind: []interface{}{
			app,
		},
	}
}

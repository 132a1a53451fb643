package desktop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"watchme/internal/shell"
)

func stubReload(t *testing.T) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	original := reloadWindow
	reloadWindow = func(context.Context) {
		calls.Add(1)
	}
	t.Cleanup(func() {
		reloadWindow = original
	})
	return &calls
}

func prepareSession(t *testing.T) (*shell.Session, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("v1"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	session, err := shell.Prepare(context.Background(), shell.Options{WatchRoot: root})
	if err != nil {
		t.Fatalf("prepare session: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
	})
	return session, root
}

func TestGreet(t *testing.T) {
	app := NewApp(nil, nil)
	if got := app.Greet("Ada"); got != "Hello, Ada! You've been greeted from Go!" {
		t.Fatalf("unexpected greeting %q", got)
	}
}

func TestWindowReloadBeforeStartup(t *testing.T) {
	calls := stubReload(t)
	window := &Window{app: NewApp(nil, nil)}
	if err := window.Reload(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("expected no runtime reload")
	}
}

func TestStartupAttachesWindowToSession(t *testing.T) {
	calls := stubReload(t)
	session, root := prepareSession(t)
	app := NewApp(session, nil)
	app.Startup(context.Background())

	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("v2"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected window reload after change")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOptionsWireWindowAndAssets(t *testing.T) {
	session, _ := prepareSession(t)
	app := NewApp(session, nil)
	fallback := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("fallback")}}

	appOptions := Options(app, fallback)
	if appOptions.Title != WindowTitle {
		t.Fatalf("unexpected title %q", appOptions.Title)
	}
	if appOptions.Width != 1000 || appOptions.Height != 700 {
		t.Fatalf("unexpected size %dx%d", appOptions.Width, appOptions.Height)
	}
	if appOptions.AssetServer == nil || appOptions.AssetServer.Middleware == nil {
		t.Fatal("expected asset middleware")
	}
	if appOptions.AssetServer.Assets == nil {
		t.Fatal("expected fallback assets")
	}
	if len(appOptions.Bind) != 1 {
		t.Fatalf("expected app to be bound, got %d bindings", len(appOptions.Bind))
	}
}

func TestShutdownClosesSession(t *testing.T) {
	session, _ := prepareSession(t)
	app := NewApp(session, nil)
	app.Shutdown(context.Background())

	select {
	case <-session.Watcher().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected watcher to stop on shutdown")
	}
}

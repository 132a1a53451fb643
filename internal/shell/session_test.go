package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"watchme/internal/assets"
	"watchme/internal/view"
	"watchme/internal/watcher"
)

// rendererHandle re-requests the root document on every reload, the way the
// native view does.
type rendererHandle struct {
	router *assets.Router
	mutex  sync.Mutex
	bodies []string
}

func (handle *rendererHandle) Reload() error {
	response := &assets.Response{Body: []byte("stale")}
	handle.router.Intercept(assets.VirtualRoot, response)
	handle.mutex.Lock()
	handle.bodies = append(handle.bodies, string(response.Body))
	handle.mutex.Unlock()
	return nil
}

func (handle *rendererHandle) seen() []string {
	handle.mutex.Lock()
	defer handle.mutex.Unlock()
	out := make([]string, len(handle.bodies))
	copy(out, handle.bodies)
	return out
}

func newWatchRoot(t *testing.T, content string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "watch-me")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("create watch root: %v", err)
	}
	writeIndex(t, root, content)
	return root
}

func writeIndex(t *testing.T, root, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, assets.RootDocument), []byte(content), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
}

func intercept(session *Session) string {
	response := &assets.Response{}
	session.Router().Intercept(assets.VirtualRoot, response)
	return string(response.Body)
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatal(message)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionServesAndReloads(t *testing.T) {
	root := newWatchRoot(t, "v1")
	session, err := Prepare(context.Background(), Options{WatchRoot: root})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer session.Close()

	if got := intercept(session); got != "v1" {
		t.Fatalf("expected v1, got %q", got)
	}

	handle := &rendererHandle{router: session.Router()}
	session.Attach(handle)
	writeIndex(t, root, "v2")

	waitFor(t, func() bool {
		return session.Reloads() >= 1
	}, "expected a reload after the change")
	if got := intercept(session); got != "v2" {
		t.Fatalf("expected v2 after reload, got %q", got)
	}

	writeIndex(t, root, "v3")
	waitFor(t, func() bool {
		seen := handle.seen()
		return len(seen) > 0 && seen[len(seen)-1] == "v3"
	}, "expected continuous mode to reload on a later change")
}

func TestSessionOnceModeReloadsOnlyOnce(t *testing.T) {
	root := newWatchRoot(t, "v1")
	session, err := Prepare(context.Background(), Options{WatchRoot: root, Mode: view.ModeOnce})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer session.Close()

	handle := &rendererHandle{router: session.Router()}
	session.Attach(handle)

	writeIndex(t, root, "v2")
	waitFor(t, func() bool {
		return session.Reloads() == 1
	}, "expected first change to reload")

	writeIndex(t, root, "v3")
	waitFor(t, func() bool {
		return session.channel.Len() > 0
	}, "expected later changes to stay queued")
	if session.Reloads() != 1 {
		t.Fatalf("expected exactly one reload, got %d", session.Reloads())
	}
	if got := intercept(session); got != "v3" {
		t.Fatalf("expected interception to stay fresh, got %q", got)
	}
}

func TestPrepareFailsWithoutWatchRoot(t *testing.T) {
	_, err := Prepare(context.Background(), Options{WatchRoot: filepath.Join(t.TempDir(), "watch-me")})
	var setupErr SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("expected setup error, got %v", err)
	}
	if setupErr.Stage != StageRegister {
		t.Fatalf("expected register stage, got %q", setupErr.Stage)
	}
	if !errors.Is(err, watcher.ErrRegistration) {
		t.Fatalf("expected registration error, got %v", err)
	}

	if _, err := Prepare(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty watch root")
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	session, err := Prepare(context.Background(), Options{WatchRoot: newWatchRoot(t, "v1")})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer session.Close()

	first := session.Attach(&rendererHandle{router: session.Router()})
	second := session.Attach(&rendererHandle{router: session.Router()})
	if first != second {
		t.Fatal("expected the same controller")
	}
}

func TestCloseEndsWait(t *testing.T) {
	session, err := Prepare(context.Background(), Options{WatchRoot: newWatchRoot(t, "v1")})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	session.Attach(&rendererHandle{router: session.Router()})

	waited := make(chan struct{})
	go func() {
		session.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("wait returned before close")
	case <-time.After(50 * time.Millisecond):
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after close")
	}
}

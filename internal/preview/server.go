package preview

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"time"

	"watchme/internal/assets"
	"watchme/internal/logging"
)

const (
	FramePath  = "/__watchme/"
	ReloadPath = "/__watchme/reload"

	shutdownTimeout = 5 * time.Second
)

const framePage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Watch Me</title>
<style>html,body,iframe{margin:0;border:0;width:100%;height:100%;}</style>
</head>
<body>
<iframe id="view" src="/"></iframe>
<script>
(function connect() {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var socket = new WebSocket(scheme + location.host + "` + ReloadPath + `");
  socket.onmessage = function (event) {
    var message = JSON.parse(event.data);
    if (message.type === "reload") {
      document.getElementById("view").contentWindow.location.reload();
    }
  };
  socket.onclose = function () { setTimeout(connect, 1000); };
})();
</script>
</body>
</html>
`

// NewHandler serves the frame page, the reload socket, and the virtual root
// through router. Paths the router does not serve come from fallback.
func NewHandler(router *assets.Router, fallback fs.FS, hub *Hub) http.Handler {
	var next http.Handler = http.NotFoundHandler()
	if fallback != nil {
		next = http.FileServer(http.FS(fallback))
	}

	mux := http.NewServeMux()
	mux.Handle(ReloadPath, hub)
	mux.HandleFunc(FramePath, serveFrame)
	mux.Handle("/", router.Middleware(next))
	return mux
}

func serveFrame(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != FramePath {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, framePage)
}

// Serve runs handler on listener until ctx is cancelled, then shuts the
// server down gracefully.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(listener)
	}()
	logger.Info("preview listening", map[string]string{
		"url": "http://" + listener.Addr().String() + FramePath,
	})

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("preview shutdown failed", map[string]string{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// Package assets intercepts requests for the application's virtual root and
// serves the root document straight from disk.
package assets

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"watchme/internal/logging"
)

const (
	// VirtualRoot is the request path of the application's own document as
	// seen by the embedded asset server.
	VirtualRoot = "/"

	// RootDocument is the file served for VirtualRoot, relative to the
	// watch root.
	RootDocument = "index.html"

	htmlContentType = "text/html; charset=utf-8"
)

// Source produces the current bytes for an intercepted route.
type Source func() ([]byte, error)

// FileSource reads path on every call. Nothing is cached.
func FileSource(path string) Source {
	return func() ([]byte, error) {
		return os.ReadFile(path)
	}
}

// Response is the body the renderer will consume. Intercept overwrites it
// only when the route's source succeeds.
type Response struct {
	Body        []byte
	ContentType string
}

type route struct {
	contentType string
	source      Source
}

// Router maps exact request paths to sources. Unmatched paths pass through.
type Router struct {
	mutex  sync.RWMutex
	routes map[string]route
	logger *logging.Logger
}

func NewRouter(logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Router{
		routes: make(map[string]route),
		logger: logger.Component("assets"),
	}
}

// NewRootRouter intercepts VirtualRoot with the root document under
// watchRoot.
func NewRootRouter(watchRoot string, logger *logging.Logger) *Router {
	router := NewRouter(logger)
	router.Handle(VirtualRoot, htmlContentType, FileSource(filepath.Join(watchRoot, RootDocument)))
	return router
}

// Handle registers source for an exact path.
func (router *Router) Handle(path, contentType string, source Source) {
	if path == "" || source == nil {
		return
	}
	router.mutex.Lock()
	router.routes[path] = route{contentType: contentType, source: source}
	router.mutex.Unlock()
}

func (router *Router) lookup(path string) (route, bool) {
	router.mutex.RLock()
	defer router.mutex.RUnlock()
	entry, ok := router.routes[path]
	return entry, ok
}

// Intercept substitutes the response body for a matching path. It returns
// false, leaving response untouched, when the path is not routed or the
// source fails.
func (router *Router) Intercept(path string, response *Response) bool {
	if response == nil {
		return false
	}
	body, contentType, ok := router.resolve(path)
	if !ok {
		return false
	}
	response.Body = body
	if contentType != "" {
		response.ContentType = contentType
	}
	return true
}

func (router *Router) resolve(path string) ([]byte, string, bool) {
	entry, ok := router.lookup(path)
	if !ok {
		return nil, "", false
	}
	body, err := entry.source()
	if err != nil {
		router.logger.Warn("asset read failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return nil, "", false
	}
	router.logger.Debug("asset served", map[string]string{
		"path":  path,
		"bytes": strconv.Itoa(len(body)),
	})
	return body, entry.contentType, true
}

// Middleware serves routed paths from their source and hands everything
// else, including failed reads and requests carrying a query, to next.
func (router *Router) Middleware(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.RawQuery != "" {
			next.ServeHTTP(w, r)
			return
		}
		body, contentType, ok := router.resolve(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	})
}

package module

import (
	"net/http"
	"strings"
)

// Router dispatches requests to mounted modules by first path segment.
// Paths that match no module fall through to a plain ServeMux, which
// carries endpoints like health probes.
type Router struct {
	modules map[string]*Module
	native  *http.ServeMux
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		modules: make(map[string]*Module),
		native:  http.NewServeMux(),
	}
}

// Mount registers a module under its prefix.
func (r *Router) Mount(m *Module) {
	r.modules[m.prefix] = m
}

// HandleNative registers a handler on the fallback mux.
func (r *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	r.native.HandleFunc(pattern, handler)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := stripTrailingSlash(req)
	if m, ok := r.modules[firstSegment(path)]; ok {
		m.Serve(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}

// firstSegment returns the leading path segment with its slash, so
// "/api/sessions/123" yields "/api".
func firstSegment(path string) string {
	if rest, ok := strings.CutPrefix(path, "/"); ok {
		if i := strings.Index(rest, "/"); i >= 0 {
			return "/" + rest[:i]
		}
	}
	return path
}

func stripTrailingSlash(req *http.Request) string {
	path := req.URL.Path
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
		req.URL.Path = path
	}
	return path
}

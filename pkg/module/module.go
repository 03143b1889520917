// Package module mounts self-contained HTTP surfaces under single-level
// path prefixes. Each module owns its router and middleware stack, so
// the review API can be composed from independent pieces.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kiranakit/reconcile/pkg/middleware"
)

// Module serves an inner router under a path prefix. Requests are
// rebased so the inner router sees paths relative to the prefix.
type Module struct {
	prefix     string
	router     http.Handler
	middleware middleware.System
}

// New creates a Module mounted at prefix, such as "/api". Panics when
// the prefix is empty, lacks a leading slash, or spans multiple levels.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{
		prefix:     prefix,
		router:     router,
		middleware: middleware.New(),
	}
}

// Prefix returns the mount point.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware to the module stack.
func (m *Module) Use(mw func(http.Handler) http.Handler) {
	m.middleware.Use(mw)
}

// Handler returns the inner router wrapped in the module middleware.
func (m *Module) Handler() http.Handler {
	return m.middleware.Apply(m.router)
}

// Serve rebases the request path below the prefix and dispatches to the
// inner router.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, rebase(req, m.prefix))
}

// rebase shallow-copies the request with the prefix stripped from its
// URL path.
func rebase(req *http.Request, prefix string) *http.Request {
	path := req.URL.Path[len(prefix):]
	if path == "" {
		path = "/"
	}

	out := new(http.Request)
	*out = *req
	out.URL = new(url.URL)
	*out.URL = *req.URL
	out.URL.Path = path
	out.URL.RawPath = ""
	return out
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("module prefix cannot be empty")
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	}
	if strings.Count(prefix, "/") != 1 {
		return fmt.Errorf("module prefix must be single-level sub-path: %s", prefix)
	}
	return nil
}

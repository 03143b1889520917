package middleware

import "net/http"

// System is an ordered middleware stack. Apply wraps a handler so the
// first middleware registered with Use runs outermost.
type System interface {
	Use(mw func(http.Handler) http.Handler)
	Apply(handler http.Handler) http.Handler
}

// New creates an empty middleware System.
func New() System {
	return &chain{}
}

type chain struct {
	stack []func(http.Handler) http.Handler
}

func (c *chain) Use(fn func(http.Handler) http.Handler) {
	c.stack = append(c.stack, fn)
}

func (c *chain) Apply(handler http.Handler) http.Handler {
	for i := len(c.stack) - 1; i >= 0; i-- {
		handler = c.stack[i](handler)
	}
	return handler
}

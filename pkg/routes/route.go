// Package routes declares HTTP endpoints as data so domain handlers
// can describe their surface and let the module register it.
package routes

import "net/http"

// Route binds a method and ServeMux pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

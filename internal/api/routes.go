package api

import (
	"net/http"

	"github.com/kiranakit/reconcile/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	images := newImageHandler(runtime.Storage, runtime.Logger)

	routes.Register(
		mux,
		domain.Sessions.Handler().Routes(),
		domain.Catalog.Handler().Routes(),
		images.routes(),
	)
}

// Package api assembles the review API module: the catalog and session
// systems, the invoice image endpoint, and the shared middleware.
package api

import (
	"net/http"

	"github.com/kiranakit/reconcile/internal/config"
	"github.com/kiranakit/reconcile/internal/infrastructure"
	"github.com/kiranakit/reconcile/pkg/middleware"
	"github.com/kiranakit/reconcile/pkg/module"
)

// NewModule mounts the review API under the configured base path.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, nil
}

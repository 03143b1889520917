package api

import (
	"github.com/kiranakit/reconcile/internal/catalog"
	"github.com/kiranakit/reconcile/internal/pipeline"
	"github.com/kiranakit/reconcile/internal/sessions"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Catalog  catalog.System
	Sessions sessions.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	catalogSystem := catalog.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	processor := pipeline.New(
		runtime.Engine,
		runtime.Pipeline,
		runtime.Logger,
	)

	sessionsSystem := sessions.New(
		runtime.Database.Connection(),
		processor,
		catalogSystem,
		runtime.Storage,
		runtime.Pipeline.Validate,
		runtime.Logger,
		runtime.Pagination,
		runtime.MaxUploadSize,
	)

	return &Domain{
		Catalog:  catalogSystem,
		Sessions: sessionsSystem,
	}
}

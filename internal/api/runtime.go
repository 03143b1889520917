package api

import (
	"github.com/kiranakit/reconcile/internal/config"
	"github.com/kiranakit/reconcile/internal/infrastructure"
	"github.com/kiranakit/reconcile/internal/pipeline"
	"github.com/kiranakit/reconcile/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	Pipeline      pipeline.Options
	MaxUploadSize int64
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Engine:    infra.Engine,
		},
		Pagination: cfg.API.Pagination,
		Pipeline: pipeline.Options{
			OCRTimeout:   cfg.OCR.TimeoutDuration(),
			HeightFactor: cfg.Pipeline.RowHeightFactor,
			Match:        cfg.Pipeline.MatchConfig(),
			Validate:     cfg.Pipeline.ValidateConfig(),
		},
		MaxUploadSize: cfg.API.MaxUploadSizeBytes(),
	}
}

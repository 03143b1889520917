package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/pkg/match"
	"github.com/kiranakit/reconcile/pkg/pagination"
)

// System defines the public contract for catalog domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)

	Find(ctx context.Context, id uuid.UUID) (*Entry, error)
	Search(ctx context.Context, name string) ([]Entry, error)
	Create(ctx context.Context, cmd CreateCommand) (*Entry, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Entry, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ApplyDelta(ctx context.Context, d Delta) (*Entry, error)
	Snapshot(ctx context.Context) ([]match.Candidate, error)
}

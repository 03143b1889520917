package sessions

import (
	"context"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/pkg/pagination"
)

// DecideCommand carries the version guard and optional edits for an
// approve or reject operation.
type DecideCommand struct {
	Version int    `json:"version"`
	Edits   *Edits `json:"edits,omitempty"`
}

// EditCommand carries the version guard and field corrections for an
// edit without a verdict.
type EditCommand struct {
	Version int    `json:"version"`
	Edits   *Edits `json:"edits"`
}

// System defines the public contract for reconciliation session operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Session], error)

	Find(ctx context.Context, id uuid.UUID) (*Session, error)
	Create(ctx context.Context, filename string, image []byte) (*Session, error)

	ApproveRow(ctx context.Context, sessionID, rowID uuid.UUID, cmd DecideCommand) (*Row, error)
	RejectRow(ctx context.Context, sessionID, rowID uuid.UUID, cmd DecideCommand) (*Row, error)
	EditRow(ctx context.Context, sessionID, rowID uuid.UUID, cmd EditCommand) (*Row, error)

	Commit(ctx context.Context, id uuid.UUID) (*CommitResult, error)
	Discard(ctx context.Context, id uuid.UUID) (*Session, error)
}

package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/internal/catalog"
	"github.com/kiranakit/reconcile/pkg/match"
)

// CatalogApplier is the slice of the catalog system the commit path
// needs. catalog.System satisfies it.
type CatalogApplier interface {
	ApplyDelta(ctx context.Context, d catalog.Delta) (*catalog.Entry, error)
	Find(ctx context.Context, id uuid.UUID) (*catalog.Entry, error)
}

// RowError records a single row's commit failure.
type RowError struct {
	RowID uuid.UUID `json:"row_id"`
	Index int       `json:"index"`
	Error string    `json:"error"`
}

// CommitResult summarizes a commit attempt. A commit succeeds as a
// whole even when individual rows fail; failed rows are reported here
// so the operator can follow up.
type CommitResult struct {
	CommittedCount int        `json:"committed_count"`
	Errors         []RowError `json:"errors"`
}

// ApplyApproved applies every approved row's delta to the catalog. Each
// row is atomic on its own; a failing row is recorded and the loop moves
// on. A catalog version conflict is retried once against the entry's
// current version before being reported.
func ApplyApproved(ctx context.Context, applier CatalogApplier, s *Session) CommitResult {
	result := CommitResult{Errors: []RowError{}}

	for i := range s.Rows {
		row := &s.Rows[i]
		if row.Decision != DecisionApproved {
			continue
		}

		delta, err := rowDelta(s.ID, row)
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				RowID: row.ID,
				Index: row.Index,
				Error: err.Error(),
			})
			continue
		}

		if _, err := applyWithRetry(ctx, applier, delta); err != nil {
			result.Errors = append(result.Errors, RowError{
				RowID: row.ID,
				Index: row.Index,
				Error: err.Error(),
			})
			continue
		}

		result.CommittedCount++
	}

	return result
}

func applyWithRetry(ctx context.Context, applier CatalogApplier, d catalog.Delta) (*catalog.Entry, error) {
	entry, err := applier.ApplyDelta(ctx, d)
	if err == nil || !errors.Is(err, catalog.ErrConflict) || d.ProductID == uuid.Nil {
		return entry, err
	}

	current, findErr := applier.Find(ctx, d.ProductID)
	if findErr != nil {
		return nil, fmt.Errorf("refresh entry after conflict: %w", findErr)
	}

	d.ExpectedVersion = current.Version
	return applier.ApplyDelta(ctx, d)
}

// rowDelta translates an approved row into the catalog mutation it
// authorizes. An approved AutoMatch or operator-resolved row increments
// the matched entry; a NewProduct row creates an entry. An approved
// ambiguous row without an operator-chosen product cannot be applied.
func rowDelta(sessionID uuid.UUID, row *Row) (catalog.Delta, error) {
	if row.Quantity == nil {
		return catalog.Delta{}, errors.New("approved row has no quantity")
	}

	d := catalog.Delta{
		SessionID:  sessionID,
		RowID:      row.ID,
		StockDelta: *row.Quantity,
		Price:      row.UnitPrice,
	}

	switch {
	case row.MatchProductID != nil:
		d.ProductID = *row.MatchProductID
		d.ExpectedVersion = row.MatchProductVersion
	case row.MatchDecision == match.NewProduct:
		if row.NameRaw == "" {
			return catalog.Delta{}, errors.New("new product row has no name")
		}
		d.Name = row.NameRaw
	default:
		return catalog.Delta{}, errors.New("ambiguous row approved without a product selection")
	}

	return d, nil
}

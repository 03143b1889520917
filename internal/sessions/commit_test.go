package sessions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/internal/catalog"
	"github.com/kiranakit/reconcile/internal/sessions"
	"github.com/kiranakit/reconcile/pkg/match"
)

// fakeApplier records applied deltas and can simulate version conflicts.
type fakeApplier struct {
	applied        []catalog.Delta
	entries        map[uuid.UUID]*catalog.Entry
	conflictOnce   map[uuid.UUID]bool
	conflictAlways bool
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{
		entries:      make(map[uuid.UUID]*catalog.Entry),
		conflictOnce: make(map[uuid.UUID]bool),
	}
}

func (f *fakeApplier) ApplyDelta(_ context.Context, d catalog.Delta) (*catalog.Entry, error) {
	if d.ProductID != uuid.Nil {
		if f.conflictAlways {
			return nil, catalog.ErrConflict
		}
		if f.conflictOnce[d.ProductID] {
			delete(f.conflictOnce, d.ProductID)
			return nil, catalog.ErrConflict
		}
		entry, ok := f.entries[d.ProductID]
		if !ok {
			return nil, catalog.ErrNotFound
		}
		if entry.Version != d.ExpectedVersion {
			return nil, catalog.ErrConflict
		}
		entry.CurrentStock += d.StockDelta
		if d.Price != nil {
			entry.CurrentPrice = *d.Price
		}
		entry.Version++
		f.applied = append(f.applied, d)
		return entry, nil
	}

	entry := &catalog.Entry{
		ID:            uuid.New(),
		CanonicalName: d.Name,
		CurrentStock:  d.StockDelta,
		Version:       1,
	}
	f.entries[entry.ID] = entry
	f.applied = append(f.applied, d)
	return entry, nil
}

func (f *fakeApplier) seed(name string, stock, price float64, version int) *catalog.Entry {
	entry := &catalog.Entry{
		ID:            uuid.New(),
		CanonicalName: name,
		CurrentStock:  stock,
		CurrentPrice:  price,
		Version:       version,
	}
	f.entries[entry.ID] = entry
	return entry
}

func (f *fakeApplier) Find(_ context.Context, id uuid.UUID) (*catalog.Entry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return entry, nil
}

func approvedRow(sessionID uuid.UUID, index int, productID *uuid.UUID, productVersion int) sessions.Row {
	decision := match.NewProduct
	if productID != nil {
		decision = match.AutoMatch
	}

	return sessions.Row{
		ID:                  uuid.New(),
		SessionID:           sessionID,
		Index:               index,
		NameRaw:             "basmati rice",
		Quantity:            floatPtr(3),
		UnitPrice:           floatPtr(50),
		Decision:            sessions.DecisionApproved,
		Version:             2,
		MatchDecision:       decision,
		MatchProductID:      productID,
		MatchProductVersion: productVersion,
	}
}

// A commit claims the status transition before applying deltas, so a
// second commit of the same session must be rejected by the status
// guard rather than re-applying increments through the conflict retry.
func TestCommittedSessionCannotReapplyDeltas(t *testing.T) {
	applier := newFakeApplier()
	entry := applier.seed("basmati rice", 12, 50, 3)

	s := &sessions.Session{ID: uuid.New(), Status: sessions.StatusPartiallyApproved}
	s.Rows = append(s.Rows, approvedRow(s.ID, 0, &entry.ID, 3))

	if err := s.EnsureCommittable(); err != nil {
		t.Fatalf("EnsureCommittable: %v", err)
	}
	s.Status = sessions.StatusCommitted

	result := sessions.ApplyApproved(context.Background(), applier, s)
	if result.CommittedCount != 1 {
		t.Fatalf("committed = %d, want 1; errors: %v", result.CommittedCount, result.Errors)
	}
	if entry.CurrentStock != 15 {
		t.Fatalf("stock = %v, want 15 after single apply", entry.CurrentStock)
	}

	if err := s.EnsureCommittable(); !errors.Is(err, sessions.ErrInvalidTransition) {
		t.Fatalf("second commit = %v, want ErrInvalidTransition", err)
	}

	if entry.CurrentStock != 15 {
		t.Errorf("stock = %v, want 15; delta applied twice", entry.CurrentStock)
	}
	if len(applier.applied) != 1 {
		t.Errorf("applied deltas = %d, want 1", len(applier.applied))
	}
}

func TestApplyApprovedSkipsRejected(t *testing.T) {
	applier := newFakeApplier()
	s := &sessions.Session{ID: uuid.New(), Status: sessions.StatusPartiallyApproved}

	s.Rows = append(s.Rows, approvedRow(s.ID, 0, nil, 0))
	rejected := approvedRow(s.ID, 1, nil, 0)
	rejected.Decision = sessions.DecisionRejected
	s.Rows = append(s.Rows, rejected)

	result := sessions.ApplyApproved(context.Background(), applier, s)

	if result.CommittedCount != 1 {
		t.Errorf("committed = %d, want 1", result.CommittedCount)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v, want none", result.Errors)
	}
	if len(applier.applied) != 1 {
		t.Errorf("applied deltas = %d, want 1", len(applier.applied))
	}
}

func TestApplyApprovedRetriesConflictOnce(t *testing.T) {
	applier := newFakeApplier()
	entry := &catalog.Entry{ID: uuid.New(), CanonicalName: "basmati rice", Version: 4}
	applier.entries[entry.ID] = entry
	applier.conflictOnce[entry.ID] = true

	s := &sessions.Session{ID: uuid.New(), Status: sessions.StatusPartiallyApproved}
	s.Rows = append(s.Rows, approvedRow(s.ID, 0, &entry.ID, 3))

	result := sessions.ApplyApproved(context.Background(), applier, s)

	if result.CommittedCount != 1 {
		t.Fatalf("committed = %d, want 1 after retry; errors: %v", result.CommittedCount, result.Errors)
	}
	if applier.applied[0].ExpectedVersion != 4 {
		t.Errorf("retry expected version = %d, want refreshed 4", applier.applied[0].ExpectedVersion)
	}
}

func TestApplyApprovedReportsPersistentConflict(t *testing.T) {
	applier := newFakeApplier()
	entry := &catalog.Entry{ID: uuid.New(), CanonicalName: "basmati rice", Version: 4}
	applier.entries[entry.ID] = entry
	applier.conflictAlways = true

	s := &sessions.Session{ID: uuid.New(), Status: sessions.StatusPartiallyApproved}
	s.Rows = append(s.Rows, approvedRow(s.ID, 0, &entry.ID, 3))

	result := sessions.ApplyApproved(context.Background(), applier, s)

	if result.CommittedCount != 0 {
		t.Errorf("committed = %d, want 0", result.CommittedCount)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want one conflict error", result.Errors)
	}
}

func TestApplyApprovedRejectsUnresolvedAmbiguous(t *testing.T) {
	applier := newFakeApplier()
	s := &sessions.Session{ID: uuid.New(), Status: sessions.StatusPartiallyApproved}

	row := approvedRow(s.ID, 0, nil, 0)
	row.MatchDecision = match.Ambiguous
	s.Rows = append(s.Rows, row)

	result := sessions.ApplyApproved(context.Background(), applier, s)

	if result.CommittedCount != 0 {
		t.Errorf("committed = %d, want 0", result.CommittedCount)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want one", result.Errors)
	}
}

func TestApplyApprovedRequiresQuantity(t *testing.T) {
	applier := newFakeApplier()
	s := &sessions.Session{ID: uuid.New(), Status: sessions.StatusPartiallyApproved}

	row := approvedRow(s.ID, 0, nil, 0)
	row.Quantity = nil
	s.Rows = append(s.Rows, row)

	result := sessions.ApplyApproved(context.Background(), applier, s)

	if result.CommittedCount != 0 || len(result.Errors) != 1 {
		t.Fatalf("result = %+v, want single quantity error", result)
	}
}

func TestApplyApprovedNewProductCarriesName(t *testing.T) {
	applier := newFakeApplier()
	s := &sessions.Session{ID: uuid.New(), Status: sessions.StatusPartiallyApproved}
	s.Rows = append(s.Rows, approvedRow(s.ID, 0, nil, 0))

	result := sessions.ApplyApproved(context.Background(), applier, s)

	if result.CommittedCount != 1 {
		t.Fatalf("committed = %d, want 1", result.CommittedCount)
	}

	d := applier.applied[0]
	if d.ProductID != uuid.Nil || d.Name != "basmati rice" {
		t.Errorf("delta = %+v, want create with name", d)
	}
	if d.Kind() != catalog.DeltaCreate {
		t.Errorf("kind = %s, want create", d.Kind())
	}
}

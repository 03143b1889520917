package sessions_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/internal/sessions"
	"github.com/kiranakit/reconcile/pkg/match"
)

func floatPtr(v float64) *float64 { return &v }

func pendingSession(rowCount int) *sessions.Session {
	s := &sessions.Session{
		ID:     uuid.New(),
		Status: sessions.StatusPending,
	}

	for i := 0; i < rowCount; i++ {
		s.Rows = append(s.Rows, sessions.Row{
			ID:        uuid.New(),
			SessionID: s.ID,
			Index:     i,
			NameRaw:   "toor dal",
			Quantity:  floatPtr(5),
			UnitPrice: floatPtr(90),
			LineTotal: floatPtr(450),
			Decision:  sessions.DecisionUndecided,
			Version:   1,
		})
	}

	return s
}

func TestApproveRowAdvancesStatus(t *testing.T) {
	s := pendingSession(2)

	if err := s.ApproveRow(s.Rows[0].ID, 1, nil); err != nil {
		t.Fatalf("ApproveRow: %v", err)
	}

	if s.Status != sessions.StatusPartiallyApproved {
		t.Errorf("status = %s, want %s", s.Status, sessions.StatusPartiallyApproved)
	}
	if s.Rows[0].Decision != sessions.DecisionApproved {
		t.Errorf("decision = %s, want approved", s.Rows[0].Decision)
	}
	if s.Rows[0].Version != 2 {
		t.Errorf("version = %d, want 2", s.Rows[0].Version)
	}
}

func TestStaleVersionLosesRace(t *testing.T) {
	s := pendingSession(1)
	rowID := s.Rows[0].ID

	if err := s.ApproveRow(rowID, 1, nil); err != nil {
		t.Fatalf("first decision: %v", err)
	}

	err := s.RejectRow(rowID, 1)
	if !errors.Is(err, sessions.ErrConflict) {
		t.Fatalf("second decision with stale version = %v, want ErrConflict", err)
	}

	if s.Rows[0].Decision != sessions.DecisionApproved {
		t.Errorf("decision = %s, first writer should win", s.Rows[0].Decision)
	}
}

// Two goroutines race to decide the same row, both holding the version
// they read before the race. The lock stands in for the per-row
// transaction the store takes; exactly one decision may win and the
// other must observe ErrConflict.
func TestConcurrentDecisionsExactlyOneWins(t *testing.T) {
	s := pendingSession(1)
	rowID := s.Rows[0].ID
	staleVersion := s.Rows[0].Version

	var mu sync.Mutex
	results := make(chan error, 2)
	decide := func(fn func() error) {
		mu.Lock()
		defer mu.Unlock()
		results <- fn()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		decide(func() error { return s.ApproveRow(rowID, staleVersion, nil) })
	}()
	go func() {
		defer wg.Done()
		decide(func() error { return s.RejectRow(rowID, staleVersion) })
	}()
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, sessions.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d, conflicts = %d, want exactly one of each", wins, conflicts)
	}
	if s.Rows[0].Version != staleVersion+1 {
		t.Errorf("version = %d, want single bump to %d", s.Rows[0].Version, staleVersion+1)
	}
	if s.Rows[0].Decision == sessions.DecisionUndecided {
		t.Error("row left undecided after a winning decision")
	}
}

func TestRowNotFound(t *testing.T) {
	s := pendingSession(1)

	err := s.ApproveRow(uuid.New(), 1, nil)
	if !errors.Is(err, sessions.ErrRowNotFound) {
		t.Errorf("err = %v, want ErrRowNotFound", err)
	}
}

func TestTerminalSessionRejectsOperations(t *testing.T) {
	for _, status := range []sessions.Status{
		sessions.StatusCommitted,
		sessions.StatusDiscarded,
		sessions.StatusFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			s := pendingSession(1)
			s.Status = status
			rowID := s.Rows[0].ID

			if err := s.ApproveRow(rowID, 1, nil); !errors.Is(err, sessions.ErrInvalidTransition) {
				t.Errorf("ApproveRow = %v, want ErrInvalidTransition", err)
			}
			if err := s.EditRow(rowID, 1, &sessions.Edits{}); !errors.Is(err, sessions.ErrInvalidTransition) {
				t.Errorf("EditRow = %v, want ErrInvalidTransition", err)
			}
			if err := s.Discard(); !errors.Is(err, sessions.ErrInvalidTransition) {
				t.Errorf("Discard = %v, want ErrInvalidTransition", err)
			}
			if err := s.EnsureCommittable(); !errors.Is(err, sessions.ErrInvalidTransition) {
				t.Errorf("EnsureCommittable = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestCommitRequiresAllDecided(t *testing.T) {
	s := pendingSession(2)

	if err := s.ApproveRow(s.Rows[0].ID, 1, nil); err != nil {
		t.Fatalf("ApproveRow: %v", err)
	}

	if err := s.EnsureCommittable(); !errors.Is(err, sessions.ErrUndecidedRows) {
		t.Fatalf("EnsureCommittable = %v, want ErrUndecidedRows", err)
	}

	if err := s.RejectRow(s.Rows[1].ID, 1); err != nil {
		t.Fatalf("RejectRow: %v", err)
	}

	if err := s.EnsureCommittable(); err != nil {
		t.Fatalf("EnsureCommittable after all decided: %v", err)
	}
}

func TestEditRowAppliesFieldsWithoutDecision(t *testing.T) {
	s := pendingSession(1)
	rowID := s.Rows[0].ID

	edits := &sessions.Edits{
		Quantity:  floatPtr(6),
		LineTotal: floatPtr(540),
	}

	if err := s.EditRow(rowID, 1, edits); err != nil {
		t.Fatalf("EditRow: %v", err)
	}

	row := &s.Rows[0]
	if row.Decision != sessions.DecisionUndecided {
		t.Errorf("decision = %s, edit must not decide", row.Decision)
	}
	if *row.Quantity != 6 || *row.LineTotal != 540 {
		t.Errorf("edits not applied: quantity=%v total=%v", *row.Quantity, *row.LineTotal)
	}
	if row.Version != 2 {
		t.Errorf("version = %d, want 2", row.Version)
	}
	if s.Status != sessions.StatusPending {
		t.Errorf("status = %s, edit must not advance status", s.Status)
	}
}

func TestApproveWithProductSelection(t *testing.T) {
	s := pendingSession(1)
	productID := uuid.New()
	s.Rows[0].MatchDecision = match.Ambiguous
	s.Rows[0].Candidates = []match.Candidate{
		{ProductID: productID, Name: "toor dal", Version: 7, Score: 0.85},
		{ProductID: uuid.New(), Name: "moong dal", Version: 2, Score: 0.84},
	}

	edits := &sessions.Edits{ProductID: &productID}
	if err := s.ApproveRow(s.Rows[0].ID, 1, edits); err != nil {
		t.Fatalf("ApproveRow: %v", err)
	}

	row := &s.Rows[0]
	if row.MatchProductID == nil || *row.MatchProductID != productID {
		t.Fatalf("product not resolved: %v", row.MatchProductID)
	}
	if row.MatchProductVersion != 7 {
		t.Errorf("product version = %d, want 7 from candidate", row.MatchProductVersion)
	}
}

func TestDiscard(t *testing.T) {
	s := pendingSession(1)

	if err := s.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if s.Status != sessions.StatusDiscarded {
		t.Errorf("status = %s, want discarded", s.Status)
	}
}

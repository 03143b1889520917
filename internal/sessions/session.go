// Package sessions implements the reconciliation session domain. A
// session holds the extracted rows of one invoice while an operator
// reviews them. Rows carry optimistic version counters; the session
// status advances through a small state machine that ends in committed,
// discarded, or failed. Catalog mutation happens only at commit, and
// only for approved rows.
package sessions

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/pkg/extract"
	"github.com/kiranakit/reconcile/pkg/match"
	"github.com/kiranakit/reconcile/pkg/validate"
)

// Status is the session lifecycle state.
type Status string

// Session statuses. Committed, discarded, and failed are terminal.
const (
	StatusPending           Status = "pending"
	StatusPartiallyApproved Status = "partially_approved"
	StatusCommitted         Status = "committed"
	StatusDiscarded         Status = "discarded"
	StatusFailed            Status = "failed"
)

// Terminal reports whether no further operations are allowed.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusDiscarded || s == StatusFailed
}

// Decision is the operator's verdict on a single row.
type Decision string

// Row decisions.
const (
	DecisionUndecided Decision = "undecided"
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
)

// Edits carries operator corrections to an extracted row. Nil fields
// are left unchanged. ProductID lets the operator resolve an ambiguous
// match to a specific catalog entry.
type Edits struct {
	NameRaw   *string    `json:"name_raw,omitempty"`
	Quantity  *float64   `json:"quantity,omitempty"`
	Unit      *string    `json:"unit,omitempty"`
	UnitPrice *float64   `json:"unit_price,omitempty"`
	LineTotal *float64   `json:"line_total,omitempty"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
}

// Empty reports whether the edits change nothing.
func (e *Edits) Empty() bool {
	return e == nil || (e.NameRaw == nil && e.Quantity == nil && e.Unit == nil &&
		e.UnitPrice == nil && e.LineTotal == nil && e.ProductID == nil)
}

// Row is one extracted invoice line under review. Version increments on
// every mutation; operations carrying a stale version fail with
// ErrConflict. MatchProductVersion is the catalog entry version captured
// when the match was scored, checked again at commit time.
type Row struct {
	ID                  uuid.UUID                 `json:"id"`
	SessionID           uuid.UUID                 `json:"session_id"`
	Index               int                       `json:"index"`
	NameRaw             string                    `json:"name_raw"`
	Quantity            *float64                  `json:"quantity,omitempty"`
	Unit                string                    `json:"unit,omitempty"`
	UnitPrice           *float64                  `json:"unit_price,omitempty"`
	LineTotal           *float64                  `json:"line_total,omitempty"`
	Confidence          map[extract.Field]float64 `json:"confidence,omitempty"`
	Decision            Decision                  `json:"decision"`
	Version             int                       `json:"version"`
	MatchDecision       match.Decision            `json:"match_decision"`
	MatchProductID      *uuid.UUID                `json:"match_product_id,omitempty"`
	MatchProductVersion int                       `json:"match_product_version"`
	MatchSimilarity     float64                   `json:"match_similarity"`
	Candidates          []match.Candidate         `json:"candidates,omitempty"`
	Flags               []validate.Flag           `json:"flags,omitempty"`
	Edited              *Edits                    `json:"edited,omitempty"`
}

// Item reconstructs the extracted line item from the row's current
// field values, reflecting any applied edits.
func (r *Row) Item() extract.LineItem {
	return extract.LineItem{
		NameRaw:    r.NameRaw,
		Quantity:   r.Quantity,
		Unit:       r.Unit,
		UnitPrice:  r.UnitPrice,
		LineTotal:  r.LineTotal,
		Confidence: r.Confidence,
		RowIndex:   r.Index,
	}
}

// ApplyEdits overwrites row fields from non-nil edit values and records
// the edit payload. It does not touch the version counter; callers
// advance it as part of the guarded mutation.
func (r *Row) ApplyEdits(edits *Edits) {
	if edits.Empty() {
		return
	}

	if edits.NameRaw != nil {
		r.NameRaw = *edits.NameRaw
	}
	if edits.Quantity != nil {
		r.Quantity = edits.Quantity
	}
	if edits.Unit != nil {
		r.Unit = *edits.Unit
	}
	if edits.UnitPrice != nil {
		r.UnitPrice = edits.UnitPrice
	}
	if edits.LineTotal != nil {
		r.LineTotal = edits.LineTotal
	}
	if edits.ProductID != nil {
		r.MatchProductID = edits.ProductID
		for _, c := range r.Candidates {
			if c.ProductID == *edits.ProductID {
				r.MatchProductVersion = c.Version
				break
			}
		}
	}

	r.Edited = edits
}

// Session is the reconciliation aggregate for one uploaded invoice.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	SourceImageKey string     `json:"source_image_key"`
	Status         Status     `json:"status"`
	Warning        string     `json:"warning,omitempty"`
	Rows           []Row      `json:"rows,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CommittedAt    *time.Time `json:"committed_at,omitempty"`
}

// Row returns the row with the given ID or ErrRowNotFound.
func (s *Session) Row(rowID uuid.UUID) (*Row, error) {
	for i := range s.Rows {
		if s.Rows[i].ID == rowID {
			return &s.Rows[i], nil
		}
	}
	return nil, ErrRowNotFound
}

// AllDecided reports whether every row has an approve or reject verdict.
func (s *Session) AllDecided() bool {
	for i := range s.Rows {
		if s.Rows[i].Decision == DecisionUndecided {
			return false
		}
	}
	return true
}

// ApproveRow marks a row approved, applying optional edits first. The
// version must match the row's current version.
func (s *Session) ApproveRow(rowID uuid.UUID, version int, edits *Edits) error {
	return s.decideRow(rowID, version, edits, DecisionApproved)
}

// RejectRow marks a row rejected. The version must match the row's
// current version.
func (s *Session) RejectRow(rowID uuid.UUID, version int) error {
	return s.decideRow(rowID, version, nil, DecisionRejected)
}

// EditRow applies corrections to a row without recording a verdict.
func (s *Session) EditRow(rowID uuid.UUID, version int, edits *Edits) error {
	if s.Status.Terminal() {
		return ErrInvalidTransition
	}

	row, err := s.Row(rowID)
	if err != nil {
		return err
	}
	if row.Version != version {
		return ErrConflict
	}

	row.ApplyEdits(edits)
	row.Version++
	return nil
}

// EnsureCommittable verifies the session can accept a commit: it must
// be non-terminal and every row must be decided.
func (s *Session) EnsureCommittable() error {
	if s.Status.Terminal() {
		return ErrInvalidTransition
	}
	if !s.AllDecided() {
		return fmt.Errorf("%w: undecided rows remain", ErrUndecidedRows)
	}
	return nil
}

// Discard moves a non-terminal session to discarded.
func (s *Session) Discard() error {
	if s.Status.Terminal() {
		return ErrInvalidTransition
	}
	s.Status = StatusDiscarded
	return nil
}

func (s *Session) decideRow(rowID uuid.UUID, version int, edits *Edits, decision Decision) error {
	if s.Status.Terminal() {
		return ErrInvalidTransition
	}

	row, err := s.Row(rowID)
	if err != nil {
		return err
	}
	if row.Version != version {
		return ErrConflict
	}

	if decision == DecisionApproved {
		row.ApplyEdits(edits)
	}
	row.Decision = decision
	row.Version++

	if s.Status == StatusPending {
		s.Status = StatusPartiallyApproved
	}
	return nil
}

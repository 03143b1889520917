// Package catalog implements the product catalog domain. It provides
// types, data access, and the optimistic-concurrency delta application
// that the reconciliation commit path drives. Entries are never mutated
// directly by the pipeline; every stock or price change arrives as a
// Delta carrying the session and row that produced it.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a catalog product. Version increments on every mutation and
// backs the optimistic concurrency checks at commit time. Extensions
// carries forward-compatible fields that have no dedicated column yet.
type Entry struct {
	ID            uuid.UUID      `json:"id"`
	CanonicalName string         `json:"canonical_name"`
	Brand         string         `json:"brand,omitempty"`
	Category      string         `json:"category,omitempty"`
	CurrentStock  float64        `json:"current_stock"`
	CurrentPrice  float64        `json:"current_price"`
	Version       int            `json:"version"`
	Extensions    map[string]any `json:"extensions,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CreateCommand carries the data for registering a new catalog entry.
type CreateCommand struct {
	CanonicalName string         `json:"canonical_name"`
	Brand         string         `json:"brand,omitempty"`
	Category      string         `json:"category,omitempty"`
	CurrentStock  float64        `json:"current_stock"`
	CurrentPrice  float64        `json:"current_price"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// UpdateCommand carries a partial entry update. Nil fields are left
// unchanged. Version must match the entry's current version or the
// update is rejected with ErrConflict.
type UpdateCommand struct {
	CanonicalName *string        `json:"canonical_name,omitempty"`
	Brand         *string        `json:"brand,omitempty"`
	Category      *string        `json:"category,omitempty"`
	CurrentStock  *float64       `json:"current_stock,omitempty"`
	CurrentPrice  *float64       `json:"current_price,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
	Version       int            `json:"version"`
}

// DeltaKind classifies a committed catalog mutation for the audit trail.
type DeltaKind string

// Delta kinds.
const (
	DeltaCreate         DeltaKind = "create"
	DeltaStockIncrement DeltaKind = "stock_increment"
)

// Delta is one approved reconciliation row's effect on the catalog.
// ProductID is uuid.Nil for new-product rows. Price, when non-nil,
// updates the entry's current price alongside the stock increment.
// ExpectedVersion is the entry version observed when the match was
// computed; a mismatch at apply time is reported as ErrConflict.
type Delta struct {
	SessionID       uuid.UUID `json:"session_id"`
	RowID           uuid.UUID `json:"row_id"`
	ProductID       uuid.UUID `json:"product_id"`
	Name            string    `json:"name,omitempty"`
	StockDelta      float64   `json:"stock_delta"`
	Price           *float64  `json:"price,omitempty"`
	ExpectedVersion int       `json:"expected_version"`
}

// Kind returns the audit classification for the delta.
func (d Delta) Kind() DeltaKind {
	if d.ProductID == uuid.Nil {
		return DeltaCreate
	}
	return DeltaStockIncrement
}

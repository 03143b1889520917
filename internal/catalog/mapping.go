package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/kiranakit/reconcile/pkg/query"
	"github.com/kiranakit/reconcile/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "catalog_entries", "e").
	Project("id", "ID").
	Project("canonical_name", "CanonicalName").
	Project("brand", "Brand").
	Project("category", "Category").
	Project("current_stock", "CurrentStock").
	Project("current_price", "CurrentPrice").
	Project("version", "Version").
	Project("extensions", "Extensions").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CanonicalName",
	Descending: false,
}

// Filters contains optional filtering criteria for catalog queries.
// Nil fields are ignored. Brand and Category use exact matching.
type Filters struct {
	Brand    *string `json:"brand,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Brand", f.Brand).
		WhereEquals("Category", f.Category)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if b := values.Get("brand"); b != "" {
		f.Brand = &b
	}

	if c := values.Get("category"); c != "" {
		f.Category = &c
	}

	return f
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	var extensionsRaw []byte

	err := s.Scan(
		&e.ID,
		&e.CanonicalName,
		&e.Brand,
		&e.Category,
		&e.CurrentStock,
		&e.CurrentPrice,
		&e.Version,
		&extensionsRaw,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if err != nil {
		return e, err
	}

	if len(extensionsRaw) > 0 {
		if err := json.Unmarshal(extensionsRaw, &e.Extensions); err != nil {
			return e, fmt.Errorf("unmarshal extensions: %w", err)
		}
	}

	return e, nil
}

package sessions

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/kiranakit/reconcile/pkg/query"
	"github.com/kiranakit/reconcile/pkg/repository"
)

var sessionProjection = query.
	NewProjectionMap("public", "sessions", "s").
	Project("id", "ID").
	Project("source_image_key", "SourceImageKey").
	Project("status", "Status").
	Project("warning", "Warning").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("committed_at", "CommittedAt")

var rowProjection = query.
	NewProjectionMap("public", "session_rows", "r").
	Project("id", "ID").
	Project("session_id", "SessionID").
	Project("row_index", "Index").
	Project("name_raw", "NameRaw").
	Project("quantity", "Quantity").
	Project("unit", "Unit").
	Project("unit_price", "UnitPrice").
	Project("line_total", "LineTotal").
	Project("confidence", "Confidence").
	Project("decision", "Decision").
	Project("version", "Version").
	Project("match_decision", "MatchDecision").
	Project("match_product_id", "MatchProductID").
	Project("match_product_version", "MatchProductVersion").
	Project("match_similarity", "MatchSimilarity").
	Project("candidates", "Candidates").
	Project("flags", "Flags").
	Project("edited", "Edited")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var rowSort = query.SortField{
	Field:      "Index",
	Descending: false,
}

// Filters contains optional filtering criteria for session queries.
type Filters struct {
	Status *string `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.WhereEquals("Status", f.Status)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	return f
}

func scanSession(s repository.Scanner) (Session, error) {
	var sess Session

	err := s.Scan(
		&sess.ID,
		&sess.SourceImageKey,
		&sess.Status,
		&sess.Warning,
		&sess.CreatedAt,
		&sess.UpdatedAt,
		&sess.CommittedAt,
	)

	return sess, err
}

func scanRow(s repository.Scanner) (Row, error) {
	var r Row
	var confidenceRaw, candidatesRaw, flagsRaw, editedRaw []byte

	err := s.Scan(
		&r.ID,
		&r.SessionID,
		&r.Index,
		&r.NameRaw,
		&r.Quantity,
		&r.Unit,
		&r.UnitPrice,
		&r.LineTotal,
		&confidenceRaw,
		&r.Decision,
		&r.Version,
		&r.MatchDecision,
		&r.MatchProductID,
		&r.MatchProductVersion,
		&r.MatchSimilarity,
		&candidatesRaw,
		&flagsRaw,
		&editedRaw,
	)

	if err != nil {
		return r, err
	}

	for name, pair := range map[string]struct {
		raw  []byte
		dest any
	}{
		"confidence": {confidenceRaw, &r.Confidence},
		"candidates": {candidatesRaw, &r.Candidates},
		"flags":      {flagsRaw, &r.Flags},
		"edited":     {editedRaw, &r.Edited},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dest); err != nil {
			return r, fmt.Errorf("unmarshal %s: %w", name, err)
		}
	}

	return r, nil
}

package sessions

import (
	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/internal/pipeline"
	"github.com/kiranakit/reconcile/pkg/match"
)

// NewSession builds a pending session from one invoice's pipeline
// output. An empty extraction yields a session with a warning rather
// than an error; the operator decides whether to discard it.
func NewSession(id uuid.UUID, imageKey string, result *pipeline.Result) *Session {
	s := &Session{
		ID:             id,
		SourceImageKey: imageKey,
		Status:         StatusPending,
	}

	if len(result.Rows) == 0 {
		s.Warning = "no invoice rows detected"
	}

	for _, rowResult := range result.Rows {
		s.Rows = append(s.Rows, buildRow(id, rowResult))
	}

	return s
}

// buildRow converts one pipeline row result into a persistable session
// row. Auto-matched rows carry the matched product and its snapshot
// version; ambiguous rows leave the product unresolved for the operator.
func buildRow(sessionID uuid.UUID, result pipeline.RowResult) Row {
	row := Row{
		ID:              uuid.New(),
		SessionID:       sessionID,
		Index:           result.Index,
		NameRaw:         result.Item.NameRaw,
		Quantity:        result.Item.Quantity,
		Unit:            result.Item.Unit,
		UnitPrice:       result.Item.UnitPrice,
		LineTotal:       result.Item.LineTotal,
		Confidence:      result.Item.Confidence,
		Decision:        DecisionUndecided,
		Version:         1,
		MatchDecision:   result.Match.Decision,
		MatchSimilarity: result.Match.Score,
		Candidates:      result.Match.Candidates,
		Flags:           result.Flags,
	}

	if result.Match.Decision == match.AutoMatch && result.Match.Best != nil {
		id := result.Match.Best.ProductID
		row.MatchProductID = &id
		row.MatchProductVersion = result.Match.Best.Version
	}

	return row
}

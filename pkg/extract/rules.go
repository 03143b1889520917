package extract

import (
	"strings"

	"github.com/kiranakit/reconcile/pkg/segment"
	"github.com/kiranakit/reconcile/pkg/tokenize"
)

// Rule is a single named classification step. Confidence is the rule's
// pattern-strength contribution: the final per-field score is this value
// scaled by the OCR-reported certainty of the claimed tokens, when the
// engine provides one.
type Rule struct {
	Name       string
	Priority   int
	Confidence float64
	Apply      func(scan *RowScan, item *LineItem)
}

// RowScan tracks which tokens of a row have been claimed by a field as
// rules execute.
type RowScan struct {
	Row     segment.Row
	claims  map[int]Field
	byField map[Field]int
}

// NewRowScan creates a scan over the row with no claims.
func NewRowScan(row segment.Row) *RowScan {
	return &RowScan{
		Row:     row,
		claims:  make(map[int]Field),
		byField: make(map[Field]int),
	}
}

// Claim records that token i belongs to field f.
func (s *RowScan) Claim(i int, f Field) {
	s.claims[i] = f
	s.byField[f] = i
}

// Claimed reports whether token i has been assigned to a field.
func (s *RowScan) Claimed(i int) bool {
	_, ok := s.claims[i]
	return ok
}

// FieldToken returns the token index claimed by field f.
func (s *RowScan) FieldToken(f Field) (int, bool) {
	i, ok := s.byField[f]
	return i, ok
}

// UnclaimedNumerics returns indices of numeric tokens not yet claimed,
// in left-to-right order.
func (s *RowScan) UnclaimedNumerics() []int {
	var out []int
	for i, t := range s.Row.Tokens {
		if t.IsNumeric() && !s.Claimed(i) {
			out = append(out, i)
		}
	}
	return out
}

// knownUnits are measure abbreviations commonly printed on grocery
// supplier invoices.
var knownUnits = map[string]bool{
	"kg": true, "g": true, "gm": true, "mg": true,
	"l": true, "ltr": true, "ml": true,
	"pc": true, "pcs": true, "pkt": true, "dz": true,
	"box": true, "bag": true, "ctn": true,
}

// DefaultRules returns the standard ordered rule set: the three numeric
// fields claimed right to left, then the unit, then the product name
// from what remains.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "line-total",
			Priority:   1,
			Confidence: 0.90,
			Apply:      claimRightmostNumeric(FieldLineTotal, 0.90),
		},
		{
			Name:       "unit-price",
			Priority:   2,
			Confidence: 0.85,
			Apply:      claimRightmostNumeric(FieldUnitPrice, 0.85),
		},
		{
			Name:       "quantity",
			Priority:   3,
			Confidence: 0.80,
			Apply:      claimRightmostNumeric(FieldQuantity, 0.80),
		},
		{
			Name:       "unit",
			Priority:   4,
			Confidence: 0.70,
			Apply:      claimUnit,
		},
		{
			Name:       "product-name",
			Priority:   5,
			Confidence: 0.75,
			Apply:      claimName,
		},
	}
}

// claimRightmostNumeric assigns the rightmost unclaimed numeric token to
// the given field.
func claimRightmostNumeric(f Field, confidence float64) func(*RowScan, *LineItem) {
	return func(scan *RowScan, item *LineItem) {
		numerics := scan.UnclaimedNumerics()
		if len(numerics) == 0 {
			return
		}

		i := numerics[len(numerics)-1]
		token := scan.Row.Tokens[i]
		scan.Claim(i, f)

		value := *token.Numeric
		switch f {
		case FieldLineTotal:
			item.LineTotal = &value
		case FieldUnitPrice:
			item.UnitPrice = &value
		case FieldQuantity:
			item.Quantity = &value
		}

		item.Confidence[f] = confidence * certainty(token)
	}
}

// claimUnit looks for a short alphabetic token directly adjacent to the
// quantity token. A right neighbor is taken on shape alone ("2 kg"); a
// left neighbor must be a known measure abbreviation, since the token
// left of the quantity is usually the tail of the product name. Known
// abbreviations score the full pattern confidence; other short tokens
// score lower.
func claimUnit(scan *RowScan, item *LineItem) {
	qi, ok := scan.FieldToken(FieldQuantity)
	if !ok {
		return
	}

	for _, i := range []int{qi + 1, qi - 1} {
		if i < 0 || i >= len(scan.Row.Tokens) || scan.Claimed(i) {
			continue
		}

		token := scan.Row.Tokens[i]
		if !token.IsAlphabetic() || len(token.Clean) > 4 {
			continue
		}
		if i == qi-1 && !knownUnits[token.Clean] {
			continue
		}

		scan.Claim(i, FieldUnit)
		item.Unit = token.Clean

		confidence := 0.50
		if knownUnits[token.Clean] {
			confidence = 0.90
		}
		item.Confidence[FieldUnit] = confidence * certainty(token)
		return
	}
}

// claimName joins the leftmost contiguous run of unclaimed alphabetic
// tokens into the raw product name.
func claimName(scan *RowScan, item *LineItem) {
	var parts []string
	var sum float64

	for i, token := range scan.Row.Tokens {
		if scan.Claimed(i) || !token.IsAlphabetic() {
			if len(parts) > 0 {
				break
			}
			continue
		}

		scan.Claim(i, FieldName)
		parts = append(parts, token.Clean)
		sum += certainty(token)
	}

	if len(parts) == 0 {
		return
	}

	item.NameRaw = strings.Join(parts, " ")
	item.Confidence[FieldName] = 0.75 * (sum / float64(len(parts)))
}

// certainty returns the OCR-reported confidence for a token, falling
// back to 1.0 when the engine does not report one.
func certainty(t tokenize.Token) float64 {
	if t.Certainty == nil {
		return 1.0
	}
	return *t.Certainty
}

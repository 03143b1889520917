// Package extract classifies the tokens of a segmented invoice row into
// line-item fields. Classification runs as an ordered list of named
// rules, each with an explicit priority and confidence contribution, so
// individual rules can be tested and tuned in isolation.
package extract

import (
	"github.com/kiranakit/reconcile/pkg/segment"
)

// Field identifies a line-item field produced by extraction.
type Field string

// Line-item fields.
const (
	FieldName      Field = "name"
	FieldQuantity  Field = "quantity"
	FieldUnit      Field = "unit"
	FieldUnitPrice Field = "unit_price"
	FieldLineTotal Field = "line_total"
)

// LineItem is the structured result of extracting one invoice row.
// Pointer fields are nil when the row did not yield that field.
// Confidence scores are in [0,1], one per populated field.
type LineItem struct {
	NameRaw    string            `json:"name_raw"`
	Quantity   *float64          `json:"quantity,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	UnitPrice  *float64          `json:"unit_price,omitempty"`
	LineTotal  *float64          `json:"line_total,omitempty"`
	Confidence map[Field]float64 `json:"confidence"`
	RowIndex   int               `json:"row_index"`
}

// NumericFieldCount returns how many of quantity, unit price, and line
// total were extracted.
func (li LineItem) NumericFieldCount() int {
	count := 0
	for _, f := range []*float64{li.Quantity, li.UnitPrice, li.LineTotal} {
		if f != nil {
			count++
		}
	}
	return count
}

// MinConfidence returns the lowest confidence across populated fields,
// or zero when nothing was extracted.
func (li LineItem) MinConfidence() float64 {
	if len(li.Confidence) == 0 {
		return 0
	}

	low := 1.0
	for _, c := range li.Confidence {
		if c < low {
			low = c
		}
	}
	return low
}

// Extract classifies a row's tokens using the default rule set.
func Extract(row segment.Row) LineItem {
	return ExtractWith(row, DefaultRules())
}

// ExtractWith classifies a row's tokens using the given rules, applied
// in order of ascending priority.
func ExtractWith(row segment.Row, rules []Rule) LineItem {
	scan := NewRowScan(row)
	item := LineItem{
		RowIndex:   row.Index,
		Confidence: make(map[Field]float64),
	}

	for _, rule := range rules {
		rule.Apply(scan, &item)
	}

	return item
}

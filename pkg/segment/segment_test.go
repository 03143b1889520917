package segment_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/kiranakit/reconcile/pkg/ocr"
	"github.com/kiranakit/reconcile/pkg/segment"
	"github.com/kiranakit/reconcile/pkg/tokenize"
)

// token builds a normalized token with a 10-unit-tall box at (x, y).
func token(text string, x, y float64) ocr.RawToken {
	return ocr.RawToken{Text: text, X0: x, Y0: y, X1: x + 40, Y1: y + 10}
}

// invoiceRow lays out a product line: name tokens on the left, quantity
// and prices on the right.
func invoiceRow(y float64, jitter func() float64) []ocr.RawToken {
	return []ocr.RawToken{
		token("basmati", 10, y+jitter()),
		token("rice", 60, y+jitter()),
		token("2", 200, y+jitter()),
		token("80.00", 260, y+jitter()),
		token("160.00", 320, y+jitter()),
	}
}

func TestSegmentRowCountProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, rowCount := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("%d-rows", rowCount), func(t *testing.T) {
			for trial := 0; trial < 20; trial++ {
				// Jitter within half the clustering threshold
				// (median height 10 × factor 0.6 = 6).
				jitter := func() float64 { return (rng.Float64() - 0.5) * 4 }

				var raws []ocr.RawToken
				for i := 0; i < rowCount; i++ {
					raws = append(raws, invoiceRow(float64(i)*50, jitter)...)
				}

				rows := segment.Segment(tokenize.Normalize(raws), segment.DefaultHeightFactor)
				if len(rows) != rowCount {
					t.Fatalf("trial %d: got %d rows, want %d", trial, len(rows), rowCount)
				}
			}
		})
	}
}

func TestSegmentOrdersRowsTopToBottomTokensLeftToRight(t *testing.T) {
	raws := []ocr.RawToken{
		token("60.00", 320, 100),
		token("sugar", 10, 100),
		token("2", 200, 100),
		token("rice", 10, 20),
		token("160.00", 320, 22),
		token("4", 200, 18),
	}

	rows := segment.Segment(tokenize.Normalize(raws), 0)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	if rows[0].Tokens[0].Clean != "rice" {
		t.Errorf("top row should start with rice, got %q", rows[0].Tokens[0].Clean)
	}
	if rows[1].Tokens[0].Clean != "sugar" {
		t.Errorf("bottom row should start with sugar, got %q", rows[1].Tokens[0].Clean)
	}

	for i, row := range rows {
		if row.Index != i {
			t.Errorf("row %d has index %d", i, row.Index)
		}
		for j := 1; j < len(row.Tokens); j++ {
			if row.Tokens[j].X0 < row.Tokens[j-1].X0 {
				t.Errorf("row %d tokens not ordered by x", i)
			}
		}
	}
}

func TestSegmentDropsNonNumericSingletons(t *testing.T) {
	raws := []ocr.RawToken{
		token("INVOICE", 100, 0),
		token("rice", 10, 50),
		token("160.00", 320, 50),
		token("thank", 100, 100),
	}

	rows := segment.Segment(tokenize.Normalize(raws), 0)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (header and footer dropped)", len(rows))
	}
	if rows[0].Tokens[0].Clean != "rice" {
		t.Errorf("surviving row should be the line item, got %q", rows[0].Tokens[0].Clean)
	}
}

func TestSegmentKeepsNumericSingletons(t *testing.T) {
	raws := []ocr.RawToken{
		token("420.00", 320, 0),
		token("rice", 10, 60),
		token("160.00", 320, 60),
	}

	rows := segment.Segment(tokenize.Normalize(raws), 0)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (numeric singleton kept)", len(rows))
	}
}

func TestSegmentEmptyInput(t *testing.T) {
	if rows := segment.Segment(nil, 0); rows != nil {
		t.Errorf("expected nil rows for empty input, got %v", rows)
	}
}

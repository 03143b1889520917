// Package segment groups normalized OCR tokens into candidate invoice
// rows using vertical-center clustering. The grouping makes no
// table-grid assumptions; it relies only on token proximity.
package segment

import (
	"sort"

	"github.com/kiranakit/reconcile/pkg/tokenize"
)

// DefaultHeightFactor scales the median token height into the vertical
// clustering threshold.
const DefaultHeightFactor = 0.6

// Row is an ordered group of tokens judged to lie on one invoice line.
// Tokens are ordered left to right; rows are indexed top to bottom.
type Row struct {
	Index  int              `json:"index"`
	Tokens []tokenize.Token `json:"tokens"`
	X0     float64          `json:"x0"`
	Y0     float64          `json:"y0"`
	X1     float64          `json:"x1"`
	Y1     float64          `json:"y1"`
}

// HasNumeric reports whether any token in the row parsed as a number.
func (r Row) HasNumeric() bool {
	for _, t := range r.Tokens {
		if t.IsNumeric() {
			return true
		}
	}
	return false
}

// Segment clusters tokens into rows. Two tokens share a row when their
// vertical centers differ by less than the median token height times
// heightFactor (DefaultHeightFactor when <= 0). Singleton rows with no
// numeric content are dropped as headers or footers.
func Segment(tokens []tokenize.Token, heightFactor float64) []Row {
	if len(tokens) == 0 {
		return nil
	}
	if heightFactor <= 0 {
		heightFactor = DefaultHeightFactor
	}

	threshold := medianHeight(tokens) * heightFactor

	sorted := make([]tokenize.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CenterY() < sorted[j].CenterY()
	})

	var clusters [][]tokenize.Token
	var current []tokenize.Token
	var currentY float64

	for _, t := range sorted {
		y := t.CenterY()

		if current == nil {
			current = []tokenize.Token{t}
			currentY = y
			continue
		}

		if y-currentY < threshold {
			current = append(current, t)
			// Running mean keeps the cluster anchored as slanted
			// photographs drift vertically across a line.
			currentY = currentY + (y-currentY)/float64(len(current))
			continue
		}

		clusters = append(clusters, current)
		current = []tokenize.Token{t}
		currentY = y
	}
	clusters = append(clusters, current)

	rows := make([]Row, 0, len(clusters))
	for _, cluster := range clusters {
		row := buildRow(cluster)
		if len(row.Tokens) == 1 && !row.HasNumeric() {
			continue
		}
		row.Index = len(rows)
		rows = append(rows, row)
	}

	return rows
}

func buildRow(cluster []tokenize.Token) Row {
	sort.SliceStable(cluster, func(i, j int) bool {
		return cluster[i].X0 < cluster[j].X0
	})

	row := Row{
		Tokens: cluster,
		X0:     cluster[0].X0,
		Y0:     cluster[0].Y0,
		X1:     cluster[0].X1,
		Y1:     cluster[0].Y1,
	}

	for _, t := range cluster[1:] {
		row.X0 = min(row.X0, t.X0)
		row.Y0 = min(row.Y0, t.Y0)
		row.X1 = max(row.X1, t.X1)
		row.Y1 = max(row.Y1, t.Y1)
	}

	return row
}

func medianHeight(tokens []tokenize.Token) float64 {
	heights := make([]float64, len(tokens))
	for i, t := range tokens {
		heights[i] = t.Height()
	}
	sort.Float64s(heights)

	mid := len(heights) / 2
	if len(heights)%2 == 0 {
		return (heights[mid-1] + heights[mid]) / 2
	}
	return heights[mid]
}

// Package match scores extracted product names against a catalog
// snapshot and decides whether each name auto-matches an entry, needs a
// manual pick among close candidates, or represents a new product.
package match

import (
	"sort"

	"github.com/google/uuid"
)

// Default decision thresholds. Tunable via configuration; these defaults
// are starting points, not calibrated requirements.
const (
	DefaultAutoThreshold      = 0.92
	DefaultAmbiguousThreshold = 0.70
	DefaultTieWindow          = 0.02
)

// MaxCandidates bounds how many runner-up candidates are surfaced for a
// manual pick.
const MaxCandidates = 3

// Decision classifies the outcome of matching one extracted name.
type Decision string

// Matching decisions.
const (
	AutoMatch  Decision = "auto_match"
	Ambiguous  Decision = "ambiguous"
	NewProduct Decision = "new_product"
)

// Candidate is a catalog entry under consideration, carrying the entry
// version observed when the snapshot was taken so commit-time writes can
// detect concurrent modification.
type Candidate struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Score     float64   `json:"score"`
}

// Config holds the decision thresholds.
type Config struct {
	AutoThreshold      float64
	AmbiguousThreshold float64
	TieWindow          float64
}

// DefaultConfig returns the default decision thresholds.
func DefaultConfig() Config {
	return Config{
		AutoThreshold:      DefaultAutoThreshold,
		AmbiguousThreshold: DefaultAmbiguousThreshold,
		TieWindow:          DefaultTieWindow,
	}
}

// Result is the outcome of matching one extracted name against the
// snapshot. Best is nil for NewProduct. Candidates holds the top-scored
// entries (best first) when the decision requires a manual pick.
type Result struct {
	Decision   Decision    `json:"decision"`
	Best       *Candidate  `json:"best,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Score      float64     `json:"score"`
}

// Match scores name against every snapshot candidate and applies the
// decision policy: scores at or above the auto threshold match
// automatically, scores in the ambiguous band surface the top candidates
// for a manual pick, and anything below proposes a new product. A
// runner-up within the tie window of the top score always downgrades an
// auto match to ambiguous.
func Match(name string, snapshot []Candidate, cfg Config) Result {
	if name == "" || len(snapshot) == 0 {
		return Result{Decision: NewProduct}
	}

	scored := make([]Candidate, len(snapshot))
	for i, c := range snapshot {
		c.Score = Similarity(name, c.Name)
		scored[i] = c
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	best := scored[0]
	tied := len(scored) > 1 && best.Score-scored[1].Score < cfg.TieWindow

	switch {
	case best.Score >= cfg.AutoThreshold && !tied:
		return Result{
			Decision: AutoMatch,
			Best:     &best,
			Score:    best.Score,
		}

	case best.Score >= cfg.AmbiguousThreshold:
		return Result{
			Decision:   Ambiguous,
			Best:       &best,
			Candidates: topCandidates(scored),
			Score:      best.Score,
		}

	default:
		return Result{Decision: NewProduct, Score: best.Score}
	}
}

func topCandidates(scored []Candidate) []Candidate {
	n := min(len(scored), MaxCandidates)
	out := make([]Candidate, n)
	copy(out, scored[:n])
	return out
}

// Package validate performs row-level consistency checks on extracted
// line items. Flags never block a row; they mark it ineligible for
// auto-commit so an operator must confirm it.
package validate

import (
	"fmt"
	"math"

	"github.com/kiranakit/reconcile/pkg/extract"
)

// Default check parameters.
const (
	DefaultTolerance     = 0.01
	DefaultMinConfidence = 0.40
)

// FlagKind classifies a validation finding.
type FlagKind string

// Validation flag kinds.
const (
	ArithmeticMismatch FlagKind = "arithmetic_mismatch"
	MissingField       FlagKind = "missing_field"
	LowConfidence      FlagKind = "low_confidence"
)

// Flag is a non-fatal validation finding attached to a row.
type Flag struct {
	Kind   FlagKind `json:"kind"`
	Detail string   `json:"detail"`
}

// Config holds validation parameters. Tolerance is the relative
// tolerance for the quantity × unit price ≈ line total check.
type Config struct {
	Tolerance     float64
	MinConfidence float64
}

// DefaultConfig returns the default validation parameters.
func DefaultConfig() Config {
	return Config{
		Tolerance:     DefaultTolerance,
		MinConfidence: DefaultMinConfidence,
	}
}

// Check runs all validations against a line item and returns the
// resulting flags, empty when the row is clean.
func Check(item extract.LineItem, cfg Config) []Flag {
	var flags []Flag

	if f := Required(item); f != nil {
		flags = append(flags, *f)
	}
	if f := Arithmetic(item, cfg.Tolerance); f != nil {
		flags = append(flags, *f)
	}
	if f := Confidence(item, cfg.MinConfidence); f != nil {
		flags = append(flags, *f)
	}

	return flags
}

// Required verifies the mandatory fields: a product name and at least
// two of quantity, unit price, and line total.
func Required(item extract.LineItem) *Flag {
	if item.NameRaw == "" {
		return &Flag{Kind: MissingField, Detail: "no product name extracted"}
	}

	if n := item.NumericFieldCount(); n < 2 {
		return &Flag{
			Kind:   MissingField,
			Detail: fmt.Sprintf("only %d of quantity, unit price, line total extracted", n),
		}
	}

	return nil
}

// Arithmetic checks quantity × unit price against the line total within
// the given relative tolerance, absorbing rounding on printed totals.
// Rows missing any of the three values are not checked here; Required
// covers absence.
func Arithmetic(item extract.LineItem, tolerance float64) *Flag {
	if item.Quantity == nil || item.UnitPrice == nil || item.LineTotal == nil {
		return nil
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	expected := *item.Quantity * *item.UnitPrice
	actual := *item.LineTotal

	scale := math.Max(math.Abs(actual), math.Abs(expected))
	if scale == 0 {
		return nil
	}

	if math.Abs(expected-actual)/scale > tolerance {
		return &Flag{
			Kind: ArithmeticMismatch,
			Detail: fmt.Sprintf(
				"%.2f × %.2f = %.2f, invoice says %.2f",
				*item.Quantity, *item.UnitPrice, expected, actual,
			),
		}
	}

	return nil
}

// Confidence flags items whose weakest extracted field falls below the
// minimum confidence.
func Confidence(item extract.LineItem, minConfidence float64) *Flag {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	if low := item.MinConfidence(); low < minConfidence {
		return &Flag{
			Kind:   LowConfidence,
			Detail: fmt.Sprintf("lowest field confidence %.2f below %.2f", low, minConfidence),
		}
	}

	return nil
}

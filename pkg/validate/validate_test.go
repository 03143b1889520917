package validate_test

import (
	"testing"

	"github.com/kiranakit/reconcile/pkg/extract"
	"github.com/kiranakit/reconcile/pkg/validate"
)

func item(name string, quantity, unitPrice, lineTotal *float64) extract.LineItem {
	li := extract.LineItem{
		NameRaw:    name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		LineTotal:  lineTotal,
		Confidence: map[extract.Field]float64{extract.FieldName: 0.75},
	}
	for f, v := range map[extract.Field]*float64{
		extract.FieldQuantity:  quantity,
		extract.FieldUnitPrice: unitPrice,
		extract.FieldLineTotal: lineTotal,
	} {
		if v != nil {
			li.Confidence[f] = 0.8
		}
	}
	return li
}

func ptr(v float64) *float64 { return &v }

func TestArithmeticWithinTolerance(t *testing.T) {
	li := item("rice", ptr(3), ptr(10.00), ptr(30.00))
	if f := validate.Arithmetic(li, 0.01); f != nil {
		t.Errorf("expected no flag, got %+v", f)
	}
}

func TestArithmeticMismatch(t *testing.T) {
	li := item("rice", ptr(3), ptr(10.00), ptr(33.00))
	f := validate.Arithmetic(li, 0.01)
	if f == nil {
		t.Fatal("expected arithmetic mismatch flag")
	}
	if f.Kind != validate.ArithmeticMismatch {
		t.Errorf("kind: got %s", f.Kind)
	}
}

func TestArithmeticRoundingAbsorbed(t *testing.T) {
	// 3 × 33.33 = 99.99, printed as 100.00: within 1%.
	li := item("rice", ptr(3), ptr(33.33), ptr(100.00))
	if f := validate.Arithmetic(li, 0.01); f != nil {
		t.Errorf("expected rounding to be absorbed, got %+v", f)
	}
}

func TestArithmeticSkipsIncompleteRows(t *testing.T) {
	li := item("rice", ptr(3), nil, ptr(30.00))
	if f := validate.Arithmetic(li, 0.01); f != nil {
		t.Errorf("expected nil for incomplete row, got %+v", f)
	}
}

func TestRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		item extract.LineItem
		want bool
	}{
		{
			name: "complete row passes",
			item: item("rice", ptr(3), ptr(10), ptr(30)),
			want: false,
		},
		{
			name: "two of three numerics pass",
			item: item("rice", ptr(3), nil, ptr(30)),
			want: false,
		},
		{
			name: "missing name flagged",
			item: item("", ptr(3), ptr(10), ptr(30)),
			want: true,
		},
		{
			name: "single numeric flagged",
			item: item("rice", nil, nil, ptr(30)),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validate.Required(tt.item)
			if got := f != nil; got != tt.want {
				t.Errorf("Required flagged=%v, want %v (flag %+v)", got, tt.want, f)
			}
			if f != nil && f.Kind != validate.MissingField {
				t.Errorf("kind: got %s", f.Kind)
			}
		})
	}
}

func TestConfidenceFlag(t *testing.T) {
	li := item("rice", ptr(3), ptr(10), ptr(30))
	li.Confidence[extract.FieldName] = 0.2

	f := validate.Confidence(li, 0.4)
	if f == nil || f.Kind != validate.LowConfidence {
		t.Fatalf("expected low confidence flag, got %+v", f)
	}
}

func TestCheckAggregatesFlags(t *testing.T) {
	li := item("", ptr(3), ptr(10.00), ptr(33.00))
	li.Confidence[extract.FieldName] = 0.1

	flags := validate.Check(li, validate.DefaultConfig())

	kinds := make(map[validate.FlagKind]bool)
	for _, f := range flags {
		kinds[f.Kind] = true
	}

	for _, want := range []validate.FlagKind{
		validate.MissingField,
		validate.ArithmeticMismatch,
		validate.LowConfidence,
	} {
		if !kinds[want] {
			t.Errorf("missing flag kind %s in %+v", want, flags)
		}
	}
}

func TestCheckCleanRow(t *testing.T) {
	li := item("rice", ptr(3), ptr(10.00), ptr(30.00))
	if flags := validate.Check(li, validate.DefaultConfig()); len(flags) != 0 {
		t.Errorf("expected no flags, got %+v", flags)
	}
}

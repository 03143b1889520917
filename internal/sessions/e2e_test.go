package sessions_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/internal/pipeline"
	"github.com/kiranakit/reconcile/internal/sessions"
	"github.com/kiranakit/reconcile/pkg/match"
	"github.com/kiranakit/reconcile/pkg/ocr"
	"github.com/kiranakit/reconcile/pkg/validate"
)

type stubEngine struct {
	tokens []ocr.RawToken
}

func (e *stubEngine) ExtractTokens(_ context.Context, _ io.Reader) ([]ocr.RawToken, error) {
	return e.tokens, nil
}

func invoiceRow(y float64, words ...string) []ocr.RawToken {
	tokens := make([]ocr.RawToken, len(words))
	for i, w := range words {
		x := float64(i) * 60
		tokens[i] = ocr.RawToken{Text: w, X0: x, Y0: y, X1: x + 50, Y1: y + 10}
	}
	return tokens
}

func fixtureImage(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.White)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture image: %v", err)
	}
	return buf.Bytes()
}

// TestInvoiceReviewCommitFlow drives a three-row invoice through the
// whole chain: extraction against a catalog snapshot, operator review,
// and catalog application. One row auto-matches, one proposes a new
// product, one carries an arithmetic mismatch and is rejected.
func TestInvoiceReviewCommitFlow(t *testing.T) {
	applier := newFakeApplier()
	dalEntry := applier.seed("Toor Dal", 12, 88, 3)
	riceEntry := applier.seed("Basmati Rice", 40, 52, 5)

	var tokens []ocr.RawToken
	tokens = append(tokens, invoiceRow(0, "Toor", "Dal", "5", "90.00", "450.00")...)
	tokens = append(tokens, invoiceRow(50, "Fancy", "Widget", "2", "10.00", "20.00")...)
	tokens = append(tokens, invoiceRow(100, "Basmati", "Rice", "3", "50.00", "200.00")...)

	snapshot := []match.Candidate{
		{ProductID: dalEntry.ID, Name: dalEntry.CanonicalName, Version: dalEntry.Version},
		{ProductID: riceEntry.ID, Name: riceEntry.CanonicalName, Version: riceEntry.Version},
	}

	p := pipeline.New(
		&stubEngine{tokens: tokens},
		pipeline.Options{Match: match.DefaultConfig(), Validate: validate.DefaultConfig()},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	result, err := p.Process(context.Background(), fixtureImage(t), snapshot)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(result.Rows))
	}

	s := sessions.NewSession(uuid.New(), "invoices/fixture.png", result)

	if s.Rows[0].MatchDecision != match.AutoMatch {
		t.Fatalf("row 0 decision = %s, want auto_match", s.Rows[0].MatchDecision)
	}
	if s.Rows[1].MatchDecision != match.NewProduct {
		t.Fatalf("row 1 decision = %s, want new_product", s.Rows[1].MatchDecision)
	}
	if len(s.Rows[2].Flags) == 0 {
		t.Fatalf("row 2 should carry an arithmetic flag")
	}

	if err := s.ApproveRow(s.Rows[0].ID, 1, nil); err != nil {
		t.Fatalf("approve row 0: %v", err)
	}
	if err := s.ApproveRow(s.Rows[1].ID, 1, nil); err != nil {
		t.Fatalf("approve row 1: %v", err)
	}
	if err := s.RejectRow(s.Rows[2].ID, 1); err != nil {
		t.Fatalf("reject row 2: %v", err)
	}

	if err := s.EnsureCommittable(); err != nil {
		t.Fatalf("EnsureCommittable: %v", err)
	}

	commit := sessions.ApplyApproved(context.Background(), applier, s)

	if commit.CommittedCount != 2 {
		t.Fatalf("committed = %d, want 2; errors: %v", commit.CommittedCount, commit.Errors)
	}
	if len(commit.Errors) != 0 {
		t.Fatalf("errors = %v, want none", commit.Errors)
	}

	if got := applier.entries[dalEntry.ID].CurrentStock; got != 17 {
		t.Errorf("dal stock = %v, want 12+5=17", got)
	}
	if got := applier.entries[dalEntry.ID].CurrentPrice; got != 90 {
		t.Errorf("dal price = %v, want updated to 90", got)
	}
	if got := applier.entries[riceEntry.ID].CurrentStock; got != 40 {
		t.Errorf("rice stock = %v, rejected row must not apply", got)
	}

	created := false
	for _, e := range applier.entries {
		if e.CanonicalName == "fancy widget" {
			created = true
		}
	}
	if !created {
		t.Errorf("new product was not created from row 1")
	}
}

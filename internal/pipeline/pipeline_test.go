package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/internal/pipeline"
	"github.com/kiranakit/reconcile/pkg/match"
	"github.com/kiranakit/reconcile/pkg/ocr"
	"github.com/kiranakit/reconcile/pkg/validate"
)

type fakeEngine struct {
	tokens []ocr.RawToken
	err    error
	block  bool
}

func (e *fakeEngine) ExtractTokens(ctx context.Context, _ io.Reader) ([]ocr.RawToken, error) {
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.tokens, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T) []byte {
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

// rowTokens lays out words left to right on one invoice line.
func rowTokens(y float64, words ...string) []ocr.RawToken {
	tokens := make([]ocr.RawToken, len(words))
	for i, w := range words {
		x := float64(i) * 60
		tokens[i] = ocr.RawToken{
			Text: w,
			X0:   x,
			Y0:   y,
			X1:   x + 50,
			Y1:   y + 10,
		}
	}
	return tokens
}

func invoiceTokens() []ocr.RawToken {
	var tokens []ocr.RawToken
	tokens = append(tokens, rowTokens(0, "Toor", "Dal", "5", "90.00", "450.00")...)
	tokens = append(tokens, rowTokens(50, "Fancy", "Widget", "2", "10.00", "20.00")...)
	tokens = append(tokens, rowTokens(100, "Basmati", "Rice", "3", "50.00", "200.00")...)
	return tokens
}

func testSnapshot() (toorID, riceID uuid.UUID, snapshot []match.Candidate) {
	toorID = uuid.New()
	riceID = uuid.New()
	snapshot = []match.Candidate{
		{ProductID: toorID, Name: "Toor Dal", Version: 1},
		{ProductID: riceID, Name: "Basmati Rice", Version: 4},
	}
	return toorID, riceID, snapshot
}

func defaultOptions() pipeline.Options {
	return pipeline.Options{
		Match:    match.DefaultConfig(),
		Validate: validate.DefaultConfig(),
	}
}

func TestProcessThreeRowInvoice(t *testing.T) {
	toorID, riceID, snapshot := testSnapshot()
	engine := &fakeEngine{tokens: invoiceTokens()}
	p := pipeline.New(engine, defaultOptions(), testLogger())

	result, err := p.Process(context.Background(), pngBytes(t), snapshot)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(result.Rows))
	}

	row := result.Rows[0]
	if row.Match.Decision != match.AutoMatch {
		t.Errorf("row 0 decision = %s, want auto_match", row.Match.Decision)
	}
	if row.Match.Best == nil || row.Match.Best.ProductID != toorID {
		t.Errorf("row 0 matched %v, want toor dal entry", row.Match.Best)
	}
	if len(row.Flags) != 0 {
		t.Errorf("row 0 flags = %v, want none", row.Flags)
	}
	if row.Item.Quantity == nil || *row.Item.Quantity != 5 {
		t.Errorf("row 0 quantity = %v, want 5", row.Item.Quantity)
	}

	if result.Rows[1].Match.Decision != match.NewProduct {
		t.Errorf("row 1 decision = %s, want new_product", result.Rows[1].Match.Decision)
	}

	row = result.Rows[2]
	if row.Match.Decision != match.AutoMatch {
		t.Errorf("row 2 decision = %s, want auto_match", row.Match.Decision)
	}
	if row.Match.Best == nil || row.Match.Best.ProductID != riceID {
		t.Errorf("row 2 matched %v, want basmati rice entry", row.Match.Best)
	}

	found := false
	for _, f := range row.Flags {
		if f.Kind == validate.ArithmeticMismatch {
			found = true
		}
	}
	if !found {
		t.Errorf("row 2 flags = %v, want arithmetic_mismatch for 3×50 vs 200", row.Flags)
	}
}

func TestProcessUndecodableImage(t *testing.T) {
	engine := &fakeEngine{tokens: invoiceTokens()}
	p := pipeline.New(engine, defaultOptions(), testLogger())

	_, err := p.Process(context.Background(), []byte("not an image"), nil)
	if !errors.Is(err, ocr.ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestProcessEngineFailure(t *testing.T) {
	engineErr := errors.New("ocr unavailable")
	engine := &fakeEngine{err: engineErr}
	p := pipeline.New(engine, defaultOptions(), testLogger())

	_, err := p.Process(context.Background(), pngBytes(t), nil)
	if !errors.Is(err, engineErr) {
		t.Errorf("err = %v, want wrapped engine error", err)
	}
}

func TestProcessOCRTimeout(t *testing.T) {
	engine := &fakeEngine{block: true}
	opts := defaultOptions()
	opts.OCRTimeout = 20 * time.Millisecond
	p := pipeline.New(engine, opts, testLogger())

	_, err := p.Process(context.Background(), pngBytes(t), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestProcessEmptyTokenStream(t *testing.T) {
	engine := &fakeEngine{}
	p := pipeline.New(engine, defaultOptions(), testLogger())

	result, err := p.Process(context.Background(), pngBytes(t), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(result.Rows))
	}
}

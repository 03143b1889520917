// Package pipeline runs an invoice image through the full extraction
// chain. It preprocesses the image, calls the OCR engine, normalizes and
// segments the resulting tokens, extracts line items, and scores each
// item against a catalog snapshot. The pipeline itself is stateless; the
// sessions domain persists its output for review.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranakit/reconcile/pkg/extract"
	"github.com/kiranakit/reconcile/pkg/match"
	"github.com/kiranakit/reconcile/pkg/ocr"
	"github.com/kiranakit/reconcile/pkg/segment"
	"github.com/kiranakit/reconcile/pkg/tokenize"
	"github.com/kiranakit/reconcile/pkg/validate"
)

// matchConcurrency bounds the per-row matching fan-out.
const matchConcurrency = 4

// RowResult is the pipeline output for one detected invoice row.
type RowResult struct {
	Index int              `json:"index"`
	Item  extract.LineItem `json:"item"`
	Match match.Result     `json:"match"`
	Flags []validate.Flag  `json:"flags"`
}

// Result is the full pipeline output for one invoice image.
type Result struct {
	Rows       []RowResult `json:"rows"`
	TokenCount int         `json:"token_count"`
}

// Processor wires the extraction chain together with its tuning
// parameters. Safe for concurrent use.
type Processor struct {
	engine       ocr.Engine
	ocrTimeout   time.Duration
	heightFactor float64
	matchCfg     match.Config
	validateCfg  validate.Config
	logger       *slog.Logger
}

// Options carries the pipeline tuning parameters.
type Options struct {
	OCRTimeout   time.Duration
	HeightFactor float64
	Match        match.Config
	Validate     validate.Config
}

// New creates a Processor from an OCR engine and tuning options.
func New(engine ocr.Engine, opts Options, logger *slog.Logger) *Processor {
	if opts.HeightFactor == 0 {
		opts.HeightFactor = segment.DefaultHeightFactor
	}
	if opts.OCRTimeout == 0 {
		opts.OCRTimeout = 30 * time.Second
	}

	return &Processor{
		engine:       engine,
		ocrTimeout:   opts.OCRTimeout,
		heightFactor: opts.HeightFactor,
		matchCfg:     opts.Match,
		validateCfg:  opts.Validate,
		logger:       logger.With("system", "pipeline"),
	}
}

// Process runs one invoice image through the extraction chain against
// the given catalog snapshot. OCR runs under the configured timeout;
// an OCR failure or timeout fails the whole invoice since no partial
// token stream is trustworthy.
func (p *Processor) Process(
	ctx context.Context,
	image []byte,
	snapshot []match.Candidate,
) (*Result, error) {
	processed, err := ocr.Preprocess(image)
	if err != nil {
		return nil, fmt.Errorf("preprocess image: %w", err)
	}

	octx, cancel := context.WithTimeout(ctx, p.ocrTimeout)
	defer cancel()

	tokens, err := p.engine.ExtractTokens(octx, bytes.NewReader(processed))
	if err != nil {
		return nil, fmt.Errorf("extract tokens: %w", err)
	}

	normalized := tokenize.Normalize(tokens)
	rows := segment.Segment(normalized, p.heightFactor)

	results := make([]RowResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(matchConcurrency)

	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			item := extract.Extract(row)
			results[i] = RowResult{
				Index: i,
				Item:  item,
				Match: match.Match(item.NameRaw, snapshot, p.matchCfg),
				Flags: validate.Check(item, p.validateCfg),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score rows: %w", err)
	}

	p.logger.Info("invoice processed",
		"tokens", len(tokens),
		"rows", len(rows),
	)

	return &Result{
		Rows:       results,
		TokenCount: len(tokens),
	}, nil
}

package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

type azureEngine struct {
	client *computervision.BaseClient
	logger *slog.Logger
}

// NewAzureEngine creates an Engine backed by the Azure Computer Vision
// printed-text OCR API.
func NewAzureEngine(cfg *Config, logger *slog.Logger) Engine {
	client := computervision.New(cfg.Endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(cfg.APIKey)

	return &azureEngine{
		client: &client,
		logger: logger.With("system", "ocr"),
	}
}

func (e *azureEngine) ExtractTokens(ctx context.Context, image io.Reader) ([]RawToken, error) {
	result, err := e.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(image),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	tokens := collectTokens(result)
	e.logger.Info("tokens extracted", "count", len(tokens))
	return tokens, nil
}

// collectTokens flattens the region/line/word hierarchy of an OCR result
// into word-level tokens. The printed-text API reports no per-word
// confidence, so Certainty is left nil.
func collectTokens(result computervision.OcrResult) []RawToken {
	var tokens []RawToken

	if result.Regions == nil {
		return tokens
	}

	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			for _, word := range *line.Words {
				if word.Text == nil || word.BoundingBox == nil {
					continue
				}

				box, ok := parseBoundingBox(*word.BoundingBox)
				if !ok {
					continue
				}

				tokens = append(tokens, RawToken{
					Text: *word.Text,
					X0:   box[0],
					Y0:   box[1],
					X1:   box[0] + box[2],
					Y1:   box[1] + box[3],
				})
			}
		}
	}

	return tokens
}

// parseBoundingBox parses the API's "x,y,width,height" box encoding.
func parseBoundingBox(s string) ([4]float64, bool) {
	var box [4]float64

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return box, false
	}

	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return box, false
		}
		box[i] = v
	}

	return box, true
}

// Package ocr defines the positioned-token model produced by optical
// character recognition and the engine contract used to extract tokens
// from supplier invoice images. The concrete engine is Azure Computer
// Vision; the pipeline only depends on the Engine interface.
package ocr

import (
	"context"
	"io"
)

// RawToken is a single text fragment with its bounding box, as reported
// by the OCR engine. Certainty is the engine-reported recognition
// confidence in [0,1]; nil when the engine does not provide one.
type RawToken struct {
	Text      string   `json:"text"`
	X0        float64  `json:"x0"`
	Y0        float64  `json:"y0"`
	X1        float64  `json:"x1"`
	Y1        float64  `json:"y1"`
	Page      int      `json:"page"`
	Certainty *float64 `json:"certainty,omitempty"`
}

// Height returns the vertical extent of the token's bounding box.
func (t RawToken) Height() float64 {
	return t.Y1 - t.Y0
}

// CenterY returns the vertical center of the token's bounding box.
func (t RawToken) CenterY() float64 {
	return (t.Y0 + t.Y1) / 2
}

// Engine extracts positioned text tokens from an image stream.
type Engine interface {
	ExtractTokens(ctx context.Context, image io.Reader) ([]RawToken, error)
}

package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Preprocess decodes a raster invoice image and applies contrast and
// sharpening adjustments that improve OCR accuracy on photographed
// documents. Returns ErrDecode when the data is not a readable image.
func Preprocess(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preprocessed image: %w", err)
	}

	return buf.Bytes(), nil
}

// ValidatePDF verifies that data is a readable PDF and returns its page
// count. Returns ErrDecode for corrupt or unreadable documents.
func ValidatePDF(data []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return count, nil
}

package ocr

import "errors"

// Sentinel errors for image intake and token extraction.
var (
	ErrDecode          = errors.New("unreadable or unsupported image")
	ErrPayloadTooLarge = errors.New("image exceeds maximum upload size")
	ErrExtractFailed   = errors.New("token extraction failed")
)

package sessions

import (
	"errors"
	"net/http"

	"github.com/kiranakit/reconcile/pkg/ocr"
)

// Domain errors for reconciliation session operations.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrRowNotFound       = errors.New("session row not found")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrConflict          = errors.New("row version conflict")
	ErrUndecidedRows     = errors.New("commit requires all rows decided")
)

// MapHTTPStatus maps session domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrRowNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUndecidedRows) {
		return http.StatusConflict
	}
	if errors.Is(err, ocr.ErrDecode) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ocr.ErrPayloadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

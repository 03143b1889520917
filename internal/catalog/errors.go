package catalog

import (
	"errors"
	"net/http"
)

// Domain errors for catalog operations.
var (
	ErrNotFound     = errors.New("catalog entry not found")
	ErrDuplicate    = errors.New("catalog entry already exists")
	ErrConflict     = errors.New("catalog entry version conflict")
	ErrInvalidEntry = errors.New("invalid catalog entry")
)

// MapHTTPStatus maps catalog domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidEntry) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

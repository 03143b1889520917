package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/pkg/handlers"
	"github.com/kiranakit/reconcile/pkg/ocr"
	"github.com/kiranakit/reconcile/pkg/pagination"
	"github.com/kiranakit/reconcile/pkg/routes"
)

// Handler provides HTTP endpoints for reconciliation session operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination
// config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "sessions"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for session endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "POST", Pattern: "/{id}/rows/{rowId}/approve", Handler: h.ApproveRow},
			{Method: "POST", Pattern: "/{id}/rows/{rowId}/reject", Handler: h.RejectRow},
			{Method: "PUT", Pattern: "/{id}/rows/{rowId}", Handler: h.EditRow},
			{Method: "POST", Pattern: "/{id}/commit", Handler: h.Commit},
			{Method: "POST", Pattern: "/{id}/discard", Handler: h.Discard},
		},
	}
}

// List returns a paginated list of sessions with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a session with its rows, decisions, candidates, and flags.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrSessionNotFound)
		return
	}

	s, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching sessions.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Create processes a multipart invoice upload and runs the extraction
// pipeline. PDF uploads are rejected up front with their page count;
// the pipeline expects a scanned image. Returns 201 with the session,
// which may carry failed status when OCR was unreachable.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ocr.ErrPayloadTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ocr.ErrDecode)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ocr.ErrDecode)
		return
	}

	if isPDF(header.Filename, data) {
		pages, pdfErr := ocr.ValidatePDF(data)
		if pdfErr != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, ocr.ErrDecode)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			fmt.Errorf("%w: pdf with %d pages; upload a scanned image", ocr.ErrDecode, pages))
		return
	}

	s, err := h.sys.Create(r.Context(), header.Filename, data)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, s)
}

// ApproveRow marks a session row approved, applying optional edits from
// a DecideCommand JSON body.
func (h *Handler) ApproveRow(w http.ResponseWriter, r *http.Request) {
	h.decideRow(w, r, h.sys.ApproveRow)
}

// RejectRow marks a session row rejected using the version guard from a
// DecideCommand JSON body.
func (h *Handler) RejectRow(w http.ResponseWriter, r *http.Request) {
	h.decideRow(w, r, h.sys.RejectRow)
}

// EditRow applies field corrections to a row without recording a verdict.
func (h *Handler) EditRow(w http.ResponseWriter, r *http.Request) {
	sessionID, rowID, ok := h.rowPath(w, r)
	if !ok {
		return
	}

	var cmd EditCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	row, err := h.sys.EditRow(r.Context(), sessionID, rowID, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, row)
}

// Commit applies all approved rows to the catalog and returns the
// per-row outcome.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrSessionNotFound)
		return
	}

	result, err := h.sys.Commit(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Discard abandons a session without touching the catalog.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrSessionNotFound)
		return
	}

	s, err := h.sys.Discard(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

func (h *Handler) decideRow(
	w http.ResponseWriter,
	r *http.Request,
	decide func(ctx context.Context, sessionID, rowID uuid.UUID, cmd DecideCommand) (*Row, error),
) {
	sessionID, rowID, ok := h.rowPath(w, r)
	if !ok {
		return
	}

	var cmd DecideCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	row, err := decide(r.Context(), sessionID, rowID, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, row)
}

func (h *Handler) rowPath(w http.ResponseWriter, r *http.Request) (sessionID, rowID uuid.UUID, ok bool) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrSessionNotFound)
		return uuid.Nil, uuid.Nil, false
	}

	rowID, err = uuid.Parse(r.PathValue("rowId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrRowNotFound)
		return uuid.Nil, uuid.Nil, false
	}

	return sessionID, rowID, true
}

func isPDF(filename string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return true
	}
	return len(data) >= 4 && string(data[:4]) == "%PDF"
}

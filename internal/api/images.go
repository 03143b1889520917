package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/kiranakit/reconcile/pkg/handlers"
	"github.com/kiranakit/reconcile/pkg/routes"
	"github.com/kiranakit/reconcile/pkg/storage"
)

// imageHandler serves the stored invoice images that sessions reference
// by source_image_key, so reviewers can see the scan beside the rows.
type imageHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newImageHandler(store storage.System, logger *slog.Logger) *imageHandler {
	return &imageHandler{
		store:  store,
		logger: logger.With("handler", "images"),
	}
}

func (h *imageHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/images",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{key...}", Handler: h.download},
		},
	}
}

func (h *imageHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("inline; filename=%q", path.Base(key)),
	)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}

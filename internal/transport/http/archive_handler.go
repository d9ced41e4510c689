package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "iotpulse/internal/errors"
)

// ArchiveHandler serves the persisted weekly aggregate snapshots.
type ArchiveHandler struct {
	store        ArchiveReaderInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewArchiveHandler creates a new archive handler with injected dependencies.
func NewArchiveHandler(store ArchiveReaderInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ArchiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger)
	}
	return &ArchiveHandler{
		store:        store,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// Routes returns the archive API routes.
func (h *ArchiveHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/weeks", h.ListWeeks)
	r.Get("/weeks/{week}", h.GetWeek)

	return r
}

// ListWeeks returns the archived weeks, newest first.
func (h *ArchiveHandler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := h.store.ListWeeks(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   weeks,
		"count":  len(weeks),
	})
}

// GetWeek returns one archived weekly snapshot.
func (h *ArchiveHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	week := chi.URLParam(r, "week")
	if week == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("week", "week key is required"))
		return
	}

	result, err := h.store.LoadWeekly(r.Context(), week)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"iotpulse/internal/dataprocessing"
	apierrors "iotpulse/internal/errors"
	"iotpulse/internal/exporter"
	"iotpulse/internal/services"
	api "iotpulse/pkg/contracts/api/v1"
	"iotpulse/pkg/contracts/domain"
)

// maxUploadMemory caps how much of a multipart upload stays in memory.
const maxUploadMemory = 32 << 20

var validate = validator.New()

type sessionIDKeyType struct{}

var sessionIDKey = sessionIDKeyType{}

// AnalysisHandler exposes the upload-and-analyze session API.
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler with injected dependencies.
func NewAnalysisHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger)
	}
	return &AnalysisHandler{
		service:      service,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis API routes.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.Upload)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Get("/data", h.GetData)
		r.Get("/export", h.ExportCSV)
		r.Post("/reset", h.Reset)
		r.Post("/filter", h.Filter)
		r.Post("/clean", h.CleanFlow)
		r.Post("/outliers/detect", h.DetectOutliers)
		r.Post("/outliers/correct", h.CorrectOutliers)
		r.Post("/outliers/remove", h.RemoveOutliers)
		r.Get("/aggregates", h.Aggregates)
		r.Post("/pumps", h.PumpRuntimes)
	})

	return r
}

// SessionCtx validates the session ID path parameter.
func (h *AnalysisHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if id == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sessionID", "session ID is required"))
			return
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDKey).(string)
	return id
}

// Upload ingests a sensor CSV export and opens a new session. The file comes
// either as the multipart field "file" or as the raw request body with the
// filename in the query string.
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename, data, err := readUpload(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	session, err := h.service.Upload(r.Context(), filename, data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionSummary(session),
	})
}

func readUpload(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return "", nil, fmt.Errorf("parse multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		return header.Filename, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload.csv"
	}
	return filename, data, nil
}

// GetSession returns the session metadata.
func (h *AnalysisHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionSummary(session),
	})
}

// DeleteSession discards a session.
func (h *AnalysisHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), sessionID(r)); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"status": "success"})
}

// GetData returns the session's current table.
func (h *AnalysisHandler) GetData(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   session.Current,
		"count":  len(session.Current.Rows),
	})
}

// ExportCSV streams the session's current table as a CSV download.
func (h *AnalysisHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, session.Filename))
	if err := exporter.WriteTableCSV(w, session.Current, exporter.Options{IncludeBOM: true}); err != nil {
		h.logger.ErrorContext(r.Context(), "csv export failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()))
	}
}

// Reset restores the session to its as-ingested state.
func (h *AnalysisHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Reset(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionSummary(session),
	})
}

// Filter narrows the session to a time window.
func (h *AnalysisHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req api.FilterRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Filter(r.Context(), sessionID(r), timeRangeFrom(req.Range), req.StartDate, req.EndDate)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionSummary(session),
		"count":  len(session.Current.Rows),
	})
}

// CleanFlow runs the flow sanitation pass.
func (h *AnalysisHandler) CleanFlow(w http.ResponseWriter, r *http.Request) {
	var req api.CleanFlowRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.CleanFlow(r.Context(), sessionID(r), req.MinThreshold, req.MaxOutlierFactor)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionSummary(session),
	})
}

// DetectOutliers flags anomalous readings of one variable.
func (h *AnalysisHandler) DetectOutliers(w http.ResponseWriter, r *http.Request) {
	var req api.OutlierDetectRequest
	if !h.decode(w, r, &req) {
		return
	}

	flagged, err := h.service.DetectOutliers(r.Context(), sessionID(r), req.Variable,
		dataprocessing.OutlierMethod(req.Method), req.Threshold)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"variable": req.Variable,
			"indices":  flagged,
		},
		"count": len(flagged),
	})
}

// CorrectOutliers repairs previously flagged readings.
func (h *AnalysisHandler) CorrectOutliers(w http.ResponseWriter, r *http.Request) {
	var req api.OutlierCorrectRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.CorrectOutliers(r.Context(), sessionID(r), req.Variable, req.Indices,
		dataprocessing.CorrectionMethod(req.Method))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionSummary(session),
	})
}

// RemoveOutliers runs the bulk detect-and-replace pass.
func (h *AnalysisHandler) RemoveOutliers(w http.ResponseWriter, r *http.Request) {
	var req api.OutlierRemoveRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.RemoveOutliers(r.Context(), sessionID(r),
		dataprocessing.OutlierMethod(req.Method), req.Variables, req.Threshold,
		dataprocessing.Replacement(req.Replacement))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionSummary(session),
	})
}

// Aggregates returns the daily and weekly summaries for the session.
func (h *AnalysisHandler) Aggregates(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Aggregates(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// PumpRuntimes returns the integrated runtime hours per pump.
func (h *AnalysisHandler) PumpRuntimes(w http.ResponseWriter, r *http.Request) {
	var req api.PumpRuntimeRequest
	if !h.decode(w, r, &req) {
		return
	}

	runtimes, err := h.service.PumpRuntimes(r.Context(), sessionID(r), req.Variables)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   runtimes,
	})
}

// decode parses and validates a JSON request body. It writes the error
// response itself and reports whether the caller should proceed.
func (h *AnalysisHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := validate.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusBadRequest, "VALIDATION_ERROR", err.Error()))
		return false
	}
	return true
}

func timeRangeFrom(s string) domain.TimeRange {
	return domain.TimeRange(s)
}

// sessionSummary is the session view returned by mutating endpoints. The full
// table is only served by GetData and ExportCSV.
func sessionSummary(s *services.Session) map[string]interface{} {
	return map[string]interface{}{
		"id":         s.ID,
		"filename":   s.Filename,
		"created_at": s.CreatedAt,
		"updated_at": s.UpdatedAt,
		"rows":       len(s.Current.Rows),
		"columns":    s.Current.Columns,
	}
}

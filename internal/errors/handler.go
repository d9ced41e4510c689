package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// ProblemDetails implements RFC 7807 problem responses.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

// Render writes the problem response.
func (p *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

// ProblemFromStatus builds a generic problem response for a status code.
func ProblemFromStatus(status int, detail, traceID string) *ProblemDetails {
	return &ProblemDetails{
		Type:    typeURI(status),
		Title:   http.StatusText(status),
		Status:  status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// ErrorHandler converts application errors into RFC 7807 responses and logs
// them with the request trace ID.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger}
}

// HandleError maps err onto a problem response. APIError keeps its status and
// code; AppError is mapped by type; anything else becomes a 500.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := r.Header.Get("X-Request-ID")

	problem := h.problemFor(err, traceID)
	problem.Instance = r.URL.Path

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("detail", problem.Detail),
		slog.String("path", r.URL.Path))

	problem.Render(w, r)
}

func (h *ErrorHandler) problemFor(err error, traceID string) *ProblemDetails {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &ProblemDetails{
			Type:    "/errors/" + codeSlug(apiErr.ErrorCode),
			Title:   http.StatusText(apiErr.StatusCode),
			Status:  apiErr.StatusCode,
			Detail:  apiErr.Message,
			TraceID: traceID,
		}
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		status := statusForType(appErr.Type)
		detail := appErr.Message
		if appErr.Type == ErrTypeIngest && appErr.Cause != nil {
			// Ingest failures surface their full chain so the user can fix
			// the file.
			detail = appErr.Error()
		}
		return &ProblemDetails{
			Type:    "/errors/" + codeSlug(string(appErr.Type)),
			Title:   http.StatusText(status),
			Status:  status,
			Detail:  detail,
			TraceID: traceID,
		}
	}

	return &ProblemDetails{
		Type:    "/errors/internal-server-error",
		Title:   http.StatusText(http.StatusInternalServerError),
		Status:  http.StatusInternalServerError,
		Detail:  "An unexpected error occurred",
		TraceID: traceID,
	}
}

// statusForType maps application error taxonomy onto HTTP statuses.
func statusForType(t ErrorType) int {
	switch t {
	case ErrTypeIngest:
		return http.StatusUnprocessableEntity
	case ErrTypeParsing, ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeStorage, ErrTypeConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func typeURI(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "/errors/bad-request"
	case http.StatusUnauthorized:
		return "/errors/unauthorized"
	case http.StatusNotFound:
		return "/errors/not-found"
	case http.StatusUnprocessableEntity:
		return "/errors/unprocessable-entity"
	case http.StatusTooManyRequests:
		return "/errors/rate-limit-exceeded"
	default:
		return "/errors/internal-server-error"
	}
}

// codeSlug lowercases an ERROR_CODE into a problem type slug.
func codeSlug(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
		case c == '_':
			out = append(out, '-')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

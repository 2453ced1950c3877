package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/research-search/internal/core/domain"
)

const internalErrorMessage = "internal error"

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrFallbackCreate):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError answers with a field-level message for client errors and a
// generic one otherwise. Server-side failures are logged with full detail.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	switch status {
	case http.StatusBadRequest:
		body := errorResponse{Error: err.Error()}
		if vErr, ok := domain.AsValidationError(err); ok {
			body = errorResponse{Error: vErr.Error(), Field: vErr.Field}
		} else if domain.IsKind(err, domain.ErrFallbackCreate) {
			body = errorResponse{Error: "query is required when feedback_id is unknown", Field: "query"}
		}
		writeJSON(w, status, body)
	case http.StatusNotFound:
		writeJSON(w, status, errorResponse{Error: "not found"})
	case http.StatusServiceUnavailable:
		slog.WarnContext(r.Context(), "upstream_unavailable", "operation", operation, "error", err.Error())
		writeJSON(w, status, errorResponse{Error: "service temporarily unavailable"})
	default:
		slog.ErrorContext(r.Context(), "request_failed", "operation", operation, "error", err.Error())
		writeJSON(w, status, errorResponse{Error: internalErrorMessage})
	}
}

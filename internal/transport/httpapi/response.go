package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Hint   string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{
		Error:  kind,
		Detail: err.Error(),
		Hint:   strings.Join(errors.GetAllHints(err), "; "),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSchema):
		return http.StatusBadRequest, "schema_error"
	case errors.Is(err, domain.ErrUnknownClassifierType):
		return http.StatusBadRequest, "unknown_classifier"
	case domain.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case domain.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, domain.ErrBackendUnreachable):
		return http.StatusServiceUnavailable, "backend_unreachable"
	case domain.IsParse(err):
		return http.StatusBadGateway, "parse_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrInferenceFailed):
		return http.StatusInternalServerError, "inference_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// StatusFor maps an error to the HTTP status reported to clients.
func StatusFor(err error) int {
	var ie *services.ImportError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ie):
		return ie.Kind.Status()
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrStaleVersion):
		return http.StatusConflict
	case errors.Is(err, shared.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError reports err as {error, kind}. Server errors are logged and keep their text in details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := services.ErrorResponse{Error: err.Error()}

	var ie *services.ImportError
	if errors.As(err, &ie) {
		resp.Kind = ie.Kind
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

// writeFailure is a fixed message with the underlying error as details.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	resp := services.ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
		s.logger.Error(msg, "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

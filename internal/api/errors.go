package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/control"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AmbiguousResponse is the 409 body for a blind request with several
// candidates.
type AmbiguousResponse struct {
	Error
	RequestedValue int              `json:"requested_value"`
	Options        []control.Option `json:"options"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeAmbiguous    = "ambiguous"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAmbiguous writes a 409 listing the candidates.
func writeAmbiguous(w http.ResponseWriter, amb *control.AmbiguousError) {
	writeJSON(w, http.StatusConflict, AmbiguousResponse{
		Error: Error{
			Status:  http.StatusConflict,
			Code:    ErrCodeAmbiguous,
			Message: amb.Reason,
		},
		RequestedValue: amb.Requested,
		Options:        amb.Options,
	})
}

// writeServiceError maps a command service error to its HTTP response.
// name is the device or scene the caller asked for.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, name string, err error) {
	var amb *control.AmbiguousError
	switch {
	case errors.As(err, &amb):
		writeAmbiguous(w, amb)
	case errors.Is(err, control.ErrNameRequired):
		writeBadRequest(w, "name is required")
	case errors.Is(err, control.ErrIsBlind):
		writeBadRequest(w, "this is a blind: use /blind/set")
	case errors.Is(err, control.ErrNotBlind):
		writeBadRequest(w, "this is not a blind: use /device/power")
	case errors.Is(err, control.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, control.ErrDeviceNotFound):
		writeNotFound(w, "device not found: "+name)
	case errors.Is(err, control.ErrBlindNotFound):
		writeNotFound(w, "blind not found: "+name)
	case errors.Is(err, control.ErrSceneNotFound):
		writeNotFound(w, "scene not found: "+name)
	case errors.Is(err, catalog.ErrStateNotFound):
		s.logger.Error("state document missing", "error", err)
		writeInternalError(w, "state document not found")
	default:
		s.logger.Error("command failed",
			"path", r.URL.Path,
			"name", name,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "failed to update state")
	}
}

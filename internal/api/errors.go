package api

import (
	"encoding/json"
	"errors"
	"net/http"

	bridge "github.com/nerrad567/gray-logic-ambeo/internal/bridges/ambeo"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal_error"
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

// writeBridgeError maps a bridge lookup error to a response. Unknown
// soundbars are 404; soundbars still being set up are 503.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrSoundbarNotConfigured):
		writeNotFound(w, err.Error())
	case errors.Is(err, bridge.ErrSoundbarNotReady):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
	}
}

// ackHTTPStatus picks the response status for a command or request error code.
func ackHTTPStatus(code string) int {
	switch code {
	case bridge.ErrCodeInvalidCommand, bridge.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case bridge.ErrCodeNotConfigured:
		return http.StatusNotFound
	case bridge.ErrCodeNotSupported:
		return http.StatusUnprocessableEntity
	case bridge.ErrCodeDeviceUnreachable:
		return http.StatusServiceUnavailable
	case bridge.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
)

const maxBodySize = 64 * 1024

// Error codes carried in ErrorBody.Code.
const (
	CodeMalformed       = "malformed_request"
	CodeInvalidSignal   = "invalid_signal"
	CodeMissingIdentity = "missing_identity"
	CodeUnknownPeriod   = "unknown_period"
	CodeGroupNotAllowed = "group_not_allowed"
	CodeRateLimited     = "rate_limited"
	CodeUnavailable     = "persistence_unavailable"
	CodeInternal        = "internal_error"
)

// ErrorBody is the JSON payload of every non-2xx response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

// decodeJSON reads one JSON object from body. Unknown fields are rejected.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// statusFor maps domain errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrInvalidSignal):
		return http.StatusBadRequest, CodeInvalidSignal
	case errors.Is(err, session.ErrMissingIdentity):
		return http.StatusBadRequest, CodeMissingIdentity
	case errors.Is(err, report.ErrUnknownPeriod):
		return http.StatusBadRequest, CodeUnknownPeriod
	case errors.Is(err, session.ErrPersistence):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

package mcp

import (
	"errors"
	"fmt"

	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/report"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	err          error
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

var (
	errGroupNotAllowed = errors.New("group not allowed")
	errRateLimited     = errors.New("too many signals for this group")
)

// MapError maps domain errors to MCP error codes. Unrecognized errors are
// returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, session.ErrInvalidSignal), errors.Is(err, activity.ErrUnknownCode):
		return &APIError{Code: "INVALID_SIGNAL", Message: err.Error(), RecoveryHint: "Use one of the codes listed in presence://docs/codes", err: err}
	case errors.Is(err, session.ErrMissingIdentity):
		return &APIError{Code: "MISSING_IDENTITY", Message: err.Error(), RecoveryHint: "Pass non-zero group_id and person_id", err: err}
	case errors.Is(err, report.ErrUnknownPeriod):
		return &APIError{Code: "UNKNOWN_PERIOD", Message: err.Error(), RecoveryHint: "Use daily, weekly or monthly", err: err}
	case errors.Is(err, errGroupNotAllowed):
		return &APIError{Code: "GROUP_NOT_ALLOWED", Message: err.Error(), err: err}
	case errors.Is(err, errRateLimited):
		return &APIError{Code: "RATE_LIMITED", Message: err.Error(), RecoveryHint: "Wait a second and retry", err: err}
	case errors.Is(err, session.ErrPersistence):
		return &APIError{Code: "PERSISTENCE_UNAVAILABLE", Message: err.Error(), RecoveryHint: "Retry later; nothing was recorded", err: err}
	default:
		return err
	}
}

package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/payment"
	"github.com/rpggio/tabletime/internal/domain/rate"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/tier"
)

// APIError is the error reported by a failed tool call.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	cause        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecoveryHint != "" {
		msg += " (" + e.RecoveryHint + ")"
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// MapError maps domain errors to tool error codes.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{Code: "INTERNAL", Message: err.Error(), cause: err}
	switch {
	case errors.Is(err, table.ErrTableNotFound):
		apiErr.Code, apiErr.RecoveryHint = "TABLE_NOT_FOUND", "Call list_tables for known labels"
	case errors.Is(err, session.ErrTableOccupied):
		apiErr.Code, apiErr.RecoveryHint = "TABLE_OCCUPIED", "Stop or move the running session first"
	case errors.Is(err, session.ErrNoActiveSession), errors.Is(err, billing.ErrNoActiveSession):
		apiErr.Code, apiErr.RecoveryHint = "NO_ACTIVE_SESSION", "Start a session on the table first"
	case errors.Is(err, billing.ErrBillNotFound):
		apiErr.Code = "BILL_NOT_FOUND"
	case errors.Is(err, payment.ErrUnresolved):
		apiErr.Code, apiErr.RecoveryHint = "PAYMENT_UNRESOLVED", "Do not submit the payment; fetch the bill again"
	case errors.Is(err, tier.ErrLocalStore):
		apiErr.Code = "LOCAL_STORE_FAILURE"
	case errors.Is(err, tier.ErrUnavailable):
		apiErr.Code, apiErr.RecoveryHint = "REMOTE_UNAVAILABLE", "Try again when the remote service is online"
	case errors.Is(err, table.ErrInvalidInput), errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, billing.ErrInvalidInput), errors.Is(err, rate.ErrInvalidRate),
		errors.Is(err, money.ErrInvalidAmount), errors.Is(err, errInvalidArgument):
		apiErr.Code = "INVALID_INPUT"
	}
	return apiErr
}

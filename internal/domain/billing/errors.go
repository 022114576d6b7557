package billing

import (
	"errors"

	"github.com/rpggio/tabletime/internal/tier"
)

var (
	// ErrRemoteUnavailable indicates the remote service could not be reached.
	// Billing data lives only on the remote tier.
	ErrRemoteUnavailable = tier.ErrUnavailable
	// ErrBillNotFound indicates the bill doesn't exist.
	ErrBillNotFound = errors.New("bill not found")
	// ErrNoActiveSession indicates the table has no running session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrInvalidInput indicates invalid billing input.
	ErrInvalidInput = errors.New("invalid billing input")
)

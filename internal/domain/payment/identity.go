package payment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identity is the (session, billing) identifier pair a payment is attached
// to. It is computed on demand and never persisted.
type Identity struct {
	SessionID   string `json:"sessionId"`
	BillingID   string `json:"billingId"`
	Strategy    string `json:"strategy"`
	Synthesized bool   `json:"synthesized"`
}

// IsValidIdentifier reports whether id can identify a session or bill:
// it must be non-blank and must not be the nil UUID.
func IsValidIdentifier(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if parsed, err := uuid.Parse(id); err == nil && parsed == uuid.Nil {
		return false
	}
	return true
}

// Validate checks both identifiers of id.
func Validate(id Identity) error {
	if !IsValidIdentifier(id.SessionID) {
		return fmt.Errorf("%w: session id %q", ErrInvalidIdentity, id.SessionID)
	}
	if !IsValidIdentifier(id.BillingID) {
		return fmt.Errorf("%w: billing id %q", ErrInvalidIdentity, id.BillingID)
	}
	return nil
}

func pair(sessionID, billingID, strategy string) (Identity, bool) {
	id := Identity{
		SessionID: strings.TrimSpace(sessionID),
		BillingID: strings.TrimSpace(billingID),
		Strategy:  strategy,
	}
	return id, Validate(id) == nil
}

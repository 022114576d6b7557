package payment

import "errors"

var (
	// ErrUnresolved indicates no valid (session, billing) identifier pair
	// could be produced for a bill. The payment must not be submitted.
	ErrUnresolved = errors.New("payment identity unresolved")
	// ErrInvalidIdentity indicates an identifier is blank or the nil UUID.
	ErrInvalidIdentity = errors.New("invalid payment identity")
)

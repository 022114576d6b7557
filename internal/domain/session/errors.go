package session

import (
	"errors"

	"github.com/rpggio/tabletime/internal/tier"
)

var (
	// ErrRemoteUnavailable indicates the remote service could not sequence
	// the transition.
	ErrRemoteUnavailable = tier.ErrUnavailable
	// ErrTableOccupied indicates the table already has a running session.
	ErrTableOccupied = errors.New("table is occupied")
	// ErrNoActiveSession indicates the table has no running session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrInvalidInput indicates an invalid session request.
	ErrInvalidInput = errors.New("invalid session input")
)

package server

import "errors"

var (
	// ErrTableNotFound indicates the table is unknown.
	ErrTableNotFound = errors.New("table not found")
	// ErrTableOccupied indicates the table already has a running session.
	ErrTableOccupied = errors.New("table is occupied")
	// ErrNoActiveSession indicates the table has no running session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrBillNotFound indicates the bill is unknown.
	ErrBillNotFound = errors.New("bill not found")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)

package table

import "errors"

var (
	// ErrTableNotFound indicates no record exists for the label.
	ErrTableNotFound = errors.New("table not found")
	// ErrInvalidInput indicates an invalid table record.
	ErrInvalidInput = errors.New("invalid table input")
)

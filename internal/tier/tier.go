// Package tier orders storage attempts across the remote service, the
// relational database and the local durable store.
//
// The remote tier is probed on every call. The relational tier is disabled
// for the rest of the process the first time it fails. The local tier is
// the last resort and its failure is the only one surfaced to callers.
package tier

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Tier identifies one of the backing stores, in order of preference.
type Tier int32

const (
	Remote Tier = iota
	Database
	Local
)

func (t Tier) String() string {
	switch t {
	case Remote:
		return "Remote"
	case Database:
		return "Database"
	case Local:
		return "Local"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name as written by MarshalText.
func (t *Tier) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Remote":
		*t = Remote
	case "Database":
		*t = Database
	case "Local":
		*t = Local
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

var (
	// ErrLocalStore wraps failures of the local durable store. There is no
	// tier after it, so callers must treat it as fatal.
	ErrLocalStore = errors.New("local store failure")
	// ErrNotConfigured is returned when an operation has no tier able to serve it.
	ErrNotConfigured = errors.New("no storage tier configured")
	// ErrUnavailable marks a tier that could not be reached: transport
	// errors, timeouts and server-side failures. Errors that do not wrap it
	// are answers from a reachable tier.
	ErrUnavailable = errors.New("tier unavailable")
)

// State holds the currently active tier and the degrade-once flag of the
// relational tier.
//
// No lock guards the flag. It only ever moves from usable to unusable, so a
// lost update costs at most one redundant failed attempt.
type State struct {
	active     atomic.Int32
	dbDisabled atomic.Bool
}

// NewState returns a state that starts on the remote tier with the
// relational tier usable.
func NewState() *State {
	s := &State{}
	s.active.Store(int32(Remote))
	return s
}

// Active returns the tier that served the most recent operation.
func (s *State) Active() Tier {
	return Tier(s.active.Load())
}

// Mark records t as the active tier.
func (s *State) Mark(t Tier) {
	s.active.Store(int32(t))
}

// DatabaseUsable reports whether the relational tier may still be attempted.
func (s *State) DatabaseUsable() bool {
	return !s.dbDisabled.Load()
}

// DisableDatabase flags the relational tier unusable for the process
// lifetime. It reports whether this call performed the transition.
func (s *State) DisableDatabase() bool {
	return s.dbDisabled.CompareAndSwap(false, true)
}

type finalError struct {
	err error
}

func (e *finalError) Error() string { return e.err.Error() }
func (e *finalError) Unwrap() error { return e.err }

// Final marks err as an authoritative answer from the tier that produced it
// (for example "not found"). Final errors stop the cascade instead of
// degrading to the next tier.
func Final(err error) error {
	if err == nil {
		return nil
	}
	return &finalError{err: err}
}

func asFinal(err error) (error, bool) {
	var fe *finalError
	if errors.As(err, &fe) {
		return fe.err, true
	}
	return nil, false
}

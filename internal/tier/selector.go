package tier

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Attempt performs an operation against a single tier.
type Attempt func(ctx context.Context) error

// Attempts lists the per-tier implementations of one operation. A nil
// attempt means the tier is not configured for the operation.
type Attempts struct {
	Op       string
	Remote   Attempt
	Database Attempt
	Local    Attempt
}

// Selector runs operations against the tiers in preference order.
type Selector struct {
	state         *State
	remoteTimeout time.Duration
	logger        *slog.Logger
}

// NewSelector creates a selector. remoteTimeout bounds every remote attempt;
// zero leaves remote attempts bounded only by the caller's context.
func NewSelector(state *State, remoteTimeout time.Duration, logger *slog.Logger) *Selector {
	if state == nil {
		state = NewState()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Selector{state: state, remoteTimeout: remoteTimeout, logger: logger}
}

// State exposes the selector's tier state for diagnostics.
func (s *Selector) State() *State {
	return s.state
}

// Active returns the tier that served the most recent operation.
func (s *Selector) Active() Tier {
	return s.state.Active()
}

// Run attempts the remote tier, then the relational tier, then the local
// tier. Each tier gets exactly one attempt.
func (s *Selector) Run(ctx context.Context, a Attempts) (Tier, error) {
	if a.Remote != nil {
		err := s.remote(ctx, a.Remote)
		if err == nil {
			s.state.Mark(Remote)
			return Remote, nil
		}
		if answer, ok := asFinal(err); ok {
			s.state.Mark(Remote)
			return Remote, answer
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Remote, ctxErr
		}
		s.logger.Warn("remote tier failed, degrading", "op", a.Op, "error", err)
	}

	return s.RunFallback(ctx, a)
}

// RunFallback runs the cascade starting at the relational tier. The remote
// attempt in a is ignored.
func (s *Selector) RunFallback(ctx context.Context, a Attempts) (Tier, error) {
	if a.Database != nil && s.state.DatabaseUsable() {
		err := a.Database(ctx)
		if err == nil {
			s.state.Mark(Database)
			return Database, nil
		}
		if answer, ok := asFinal(err); ok {
			s.state.Mark(Database)
			return Database, answer
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Database, ctxErr
		}
		if s.state.DisableDatabase() {
			s.logger.Warn("relational tier disabled for the rest of the process", "op", a.Op, "error", err)
		} else {
			s.logger.Warn("relational tier failed", "op", a.Op, "error", err)
		}
	}

	if a.Local == nil {
		return Local, fmt.Errorf("%s: %w", a.Op, ErrNotConfigured)
	}

	err := a.Local(ctx)
	if answer, ok := asFinal(err); ok {
		s.state.Mark(Local)
		return Local, answer
	}
	if err != nil {
		s.logger.Error("local tier failed", "op", a.Op, "error", err)
		return Local, fmt.Errorf("%w: %s: %w", ErrLocalStore, a.Op, err)
	}
	s.state.Mark(Local)
	return Local, nil
}

// TryRemote runs a remote-only attempt with the remote timeout. Operations
// that need authoritative sequencing use it and decide themselves how to
// degrade. Final errors are unwrapped and count as a remote answer.
func (s *Selector) TryRemote(ctx context.Context, op string, attempt Attempt) error {
	err := s.remote(ctx, attempt)
	if err == nil {
		s.state.Mark(Remote)
		return nil
	}
	if answer, ok := asFinal(err); ok {
		s.state.Mark(Remote)
		return answer
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Warn("remote tier failed", "op", op, "error", err)
	return err
}

func (s *Selector) remote(ctx context.Context, attempt Attempt) error {
	if s.remoteTimeout <= 0 {
		return attempt(ctx)
	}
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	return attempt(rctx)
}

// Query lists the per-tier implementations of a read that produces a value.
type Query[T any] struct {
	Op       string
	Remote   func(ctx context.Context) (T, error)
	Database func(ctx context.Context) (T, error)
	Local    func(ctx context.Context) (T, error)
}

// Fetch runs q through the selector and returns the value produced by the
// tier that served it.
func Fetch[T any](ctx context.Context, s *Selector, q Query[T]) (T, Tier, error) {
	var out T
	wrap := func(fn func(ctx context.Context) (T, error)) Attempt {
		if fn == nil {
			return nil
		}
		return func(ctx context.Context) error {
			v, err := fn(ctx)
			if err == nil {
				out = v
			}
			return err
		}
	}

	t, err := s.Run(ctx, Attempts{
		Op:       q.Op,
		Remote:   wrap(q.Remote),
		Database: wrap(q.Database),
		Local:    wrap(q.Local),
	})
	return out, t, err
}

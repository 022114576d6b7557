package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/repository"
	"github.com/rpggio/tabletime/internal/tier"
)

// Config wires the session manager. Remote may be nil, in which case every
// start and stop runs in degraded mode and moves fail.
type Config struct {
	Remote   Remote
	Tables   *table.Service
	Selector *tier.Selector
	Logger   *slog.Logger
	Now      func() time.Time
}

// Manager runs table session transitions. The remote service is the only
// tier able to sequence sessions and finalize bills; when it cannot be
// reached, starts and stops fall back to flipping the table record on the
// relational or local tier without billing linkage.
type Manager struct {
	remote   Remote
	tables   *table.Service
	selector *tier.Selector
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	selector := cfg.Selector
	if selector == nil {
		selector = tier.NewSelector(nil, 0, logger)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		remote:   cfg.Remote,
		tables:   cfg.Tables,
		selector: selector,
		logger:   logger,
		now:      now,
	}
}

// Start opens a session on req.Label.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		return nil, fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}

	var started *Started
	err := m.tryRemote(ctx, "start_session", func(ctx context.Context) (err error) {
		started, err = m.remote.StartSession(ctx, req.Label, req)
		return err
	})
	switch {
	case err == nil:
		sess := started.Session
		tbl := started.Table
		m.logger.Info("session started", "label", req.Label, "session_id", sess.SessionID)
		return &StartResult{Table: &tbl, Session: &sess, Source: tier.Remote}, nil
	case errors.Is(err, repository.ErrConflict):
		return nil, fmt.Errorf("%w: %w", ErrTableOccupied, err)
	case !errors.Is(err, ErrRemoteUnavailable):
		return nil, fmt.Errorf("start session on %s: %w", req.Label, err)
	}

	m.logger.Warn("starting session in degraded mode", "label", req.Label, "error", err)
	start := m.now()
	rec, served, err := m.tables.MutateOffline(ctx, req.Label, func(rec *table.TableStatus, found bool) error {
		if found && rec.Occupied {
			return ErrTableOccupied
		}
		rec.Occupy(start, req.ServerID)
		rec.OrderID = nil
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start session on %s: %w", req.Label, err)
	}
	return &StartResult{Table: rec, Source: served, Degraded: true}, nil
}

// Stop closes the session on label. Served by the remote tier, the result
// carries the finalized bill.
func (m *Manager) Stop(ctx context.Context, label string) (*StopResult, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}

	var bill *billing.Bill
	err := m.tryRemote(ctx, "stop_session", func(ctx context.Context) (err error) {
		bill, err = m.remote.StopSession(ctx, label)
		return err
	})
	switch {
	case err == nil:
		m.logger.Info("session stopped", "label", label, "bill_id", bill.BillID, "total", bill.TotalAmount.String())
		return &StopResult{Label: label, Bill: bill, Source: tier.Remote}, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%w: %w", ErrNoActiveSession, err)
	case !errors.Is(err, ErrRemoteUnavailable):
		return nil, fmt.Errorf("stop session on %s: %w", label, err)
	}

	m.logger.Warn("stopping session in degraded mode", "label", label, "error", err)
	return m.releaseOffline(ctx, label)
}

// Move transfers the running session from one table to another. It needs
// the remote tier: a move has no degraded mode.
func (m *Manager) Move(ctx context.Context, from, to string) (*MoveResult, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: both table labels are required", ErrInvalidInput)
	}
	if from == to {
		return nil, fmt.Errorf("%w: cannot move %s onto itself", ErrInvalidInput, from)
	}

	var moved *Moved
	err := m.tryRemote(ctx, "move_session", func(ctx context.Context) (err error) {
		moved, err = m.remote.MoveSession(ctx, from, to)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrRemoteUnavailable):
		return nil, fmt.Errorf("move session %s -> %s: remote service unreachable, try again when online: %w", from, to, err)
	case errors.Is(err, repository.ErrConflict):
		return nil, fmt.Errorf("%w: %w", ErrTableOccupied, err)
	default:
		return nil, fmt.Errorf("move session %s -> %s: %w", from, to, err)
	}

	m.logger.Info("session moved", "from", from, "to", to, "session_id", moved.Session.SessionID)
	return &MoveResult{
		Session: moved.Session,
		From:    moved.From,
		To:      moved.To,
		Source:  tier.Remote,
	}, nil
}

// ForceFree releases label without producing a bill, closing any running
// session. It degrades like Stop.
func (m *Manager) ForceFree(ctx context.Context, label string) (*StopResult, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}

	var rec *table.TableStatus
	err := m.tryRemote(ctx, "force_free", func(ctx context.Context) (err error) {
		rec, err = m.remote.ForceFree(ctx, label)
		return err
	})
	switch {
	case err == nil:
		m.logger.Info("table force-freed", "label", label)
		return &StopResult{Label: label, Table: rec, Source: tier.Remote}, nil
	case !errors.Is(err, ErrRemoteUnavailable):
		return nil, fmt.Errorf("force free %s: %w", label, err)
	}

	m.logger.Warn("force-freeing table in degraded mode", "label", label, "error", err)
	return m.releaseOffline(ctx, label)
}

func (m *Manager) releaseOffline(ctx context.Context, label string) (*StopResult, error) {
	rec, served, err := m.tables.MutateOffline(ctx, label, func(rec *table.TableStatus, found bool) error {
		if !found {
			return table.ErrTableNotFound
		}
		// Sessions started on the remote tier never reach the offline
		// copies, so a record that already reads free is released again.
		rec.Release()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", label, err)
	}
	return &StopResult{Label: label, Table: rec, Source: served, Degraded: true}, nil
}

// tryRemote classifies remote failures: anything that is not
// ErrRemoteUnavailable is an answer from a reachable service.
func (m *Manager) tryRemote(ctx context.Context, op string, fn tier.Attempt) error {
	if m.remote == nil {
		return fmt.Errorf("%w: remote service not configured", ErrRemoteUnavailable)
	}
	return m.selector.TryRemote(ctx, op, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && !errors.Is(err, ErrRemoteUnavailable) {
			return tier.Final(err)
		}
		return err
	})
}

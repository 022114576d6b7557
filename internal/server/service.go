// Package server is the reference remote service: the authoritative owner
// of tables, sessions, bills and the billing rate.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository"
)

// Service implements the remote service operations. Session transitions
// run under a per-label lock and in a single transaction each.
type Service struct {
	store  Store
	locker Locker
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocker overrides the per-label locker.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// NewService creates the service over store.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		store:  store,
		locker: NewMemoryLocker(),
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Health checks the storage connection.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListTables returns every table ordered by label.
func (s *Service) ListTables(ctx context.Context) ([]table.TableStatus, error) {
	return s.store.Repos().Tables.List(ctx)
}

// GetTable returns the table with label.
func (s *Service) GetTable(ctx context.Context, label string) (*table.TableStatus, error) {
	rec, err := s.store.Repos().Tables.Get(ctx, label)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTableNotFound
	}
	return rec, err
}

// UpsertTable inserts or replaces a table record.
func (s *Service) UpsertTable(ctx context.Context, rec table.TableStatus) (*table.TableStatus, error) {
	if err := s.prepare(&rec); err != nil {
		return nil, err
	}
	return s.store.Repos().Tables.Mutate(ctx, rec.Label, func(cur *table.TableStatus, found bool) error {
		next := rec
		if found {
			next.Settle(cur)
		} else {
			next.Settle(nil)
		}
		*cur = next
		return nil
	})
}

// BulkUpsertTables applies the batch in one transaction.
func (s *Service) BulkUpsertTables(ctx context.Context, recs []table.TableStatus) error {
	for i := range recs {
		if err := s.prepare(&recs[i]); err != nil {
			return err
		}
	}
	return s.store.Repos().Tables.UpsertMany(ctx, recs)
}

// SeedTables inserts the tables that do not exist yet.
func (s *Service) SeedTables(ctx context.Context, recs []table.TableStatus) error {
	for i := range recs {
		if err := s.prepare(&recs[i]); err != nil {
			return err
		}
		recs[i].Settle(nil)
	}
	return s.store.Repos().Tables.Seed(ctx, recs)
}

// Start opens a session on label, creating the table on first use.
func (s *Service) Start(ctx context.Context, label string, req session.StartRequest) (*session.Started, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}
	unlock, err := s.locker.Lock(ctx, label)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now().UTC()
	sess := billing.Session{
		SessionID:  s.newID(),
		BillingID:  s.newID(),
		TableLabel: label,
		ServerID:   strings.TrimSpace(req.ServerID),
		ServerName: strings.TrimSpace(req.ServerName),
		StartTime:  now,
		Status:     billing.StatusActive,
	}

	var rec *table.TableStatus
	err = s.store.InTx(ctx, func(r Repos) error {
		if _, err := r.Sessions.ActiveByTable(ctx, label); err == nil {
			return ErrTableOccupied
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := r.Sessions.Create(ctx, &sess); err != nil {
			return err
		}
		rec, err = r.Tables.Mutate(ctx, label, func(t *table.TableStatus, found bool) error {
			if found && t.Occupied {
				return ErrTableOccupied
			}
			t.Occupy(now, sess.ServerID)
			orderID := sess.BillingID
			t.OrderID = &orderID
			t.Normalize(now)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session started", "label", label, "session_id", sess.SessionID, "server", sess.ServerID)
	return &session.Started{Session: sess, Table: *rec}, nil
}

// Stop closes the session on label and finalizes its bill: items cost is
// the sum of the item lines, time cost is the started minutes (at least
// one) times the per-minute rate.
func (s *Service) Stop(ctx context.Context, label string) (*billing.Bill, error) {
	label = strings.TrimSpace(label)
	unlock, err := s.locker.Lock(ctx, label)
	if err != nil {
		return nil, err
	}
	defer unlock()

	end := s.now().UTC()
	var bill *billing.Bill
	err = s.store.InTx(ctx, func(r Repos) error {
		sess, err := r.Sessions.ActiveByTable(ctx, label)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return err
		}
		items, err := r.Items.List(ctx, sess.SessionID)
		if err != nil {
			return err
		}
		perMinute, err := r.Settings.GetRate(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			perMinute = money.Zero
		} else if err != nil {
			return err
		}

		itemsCost := billing.ItemsCost(items)
		timeCost, err := TimeCost(sess.StartTime, end, perMinute)
		if err != nil {
			return err
		}
		total, err := itemsCost.CheckedAdd(timeCost)
		if err != nil {
			return fmt.Errorf("bill total: %w", err)
		}
		bill = &billing.Bill{
			BillID:      s.newID(),
			SessionID:   sess.SessionID,
			BillingID:   sess.BillingID,
			TableLabel:  label,
			ServerName:  sess.ServerName,
			StartTime:   sess.StartTime,
			EndTime:     &end,
			ItemsCost:   itemsCost,
			TimeCost:    timeCost,
			TotalAmount: total,
			Items:       items,
		}
		if err := r.Bills.Create(ctx, bill); err != nil {
			return err
		}
		if err := r.Sessions.Close(ctx, sess.SessionID, end); err != nil {
			return err
		}
		_, err = r.Tables.Mutate(ctx, label, func(t *table.TableStatus, _ bool) error {
			t.Release()
			t.Normalize(end)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session stopped", "label", label, "bill_id", bill.BillID, "total", bill.TotalAmount.String())
	return bill, nil
}

// Move transfers the running session on from to the free table to. The
// target inherits start time, order and server; the source is released.
func (s *Service) Move(ctx context.Context, from, to string) (*session.Moved, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("%w: move needs two distinct labels", ErrInvalidInput)
	}

	// Lock in a fixed order so crossing moves cannot deadlock.
	keys := []string{from, to}
	sort.Strings(keys)
	for _, key := range keys {
		unlock, err := s.locker.Lock(ctx, key)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	now := s.now().UTC()
	var moved session.Moved
	err := s.store.InTx(ctx, func(r Repos) error {
		sess, err := r.Sessions.ActiveByTable(ctx, from)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return err
		}
		if _, err := r.Sessions.ActiveByTable(ctx, to); err == nil {
			return ErrTableOccupied
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		src, err := r.Tables.Get(ctx, from)
		if errors.Is(err, repository.ErrNotFound) {
			src = &table.TableStatus{Label: from}
		} else if err != nil {
			return err
		}
		dst, err := r.Tables.Get(ctx, to)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}
		if dst.Occupied {
			return ErrTableOccupied
		}

		dst.Occupy(sess.StartTime, sess.ServerID)
		orderID := sess.BillingID
		if src.OrderID != nil {
			orderID = *src.OrderID
		}
		dst.OrderID = &orderID
		if src.Server != nil {
			server := *src.Server
			dst.Server = &server
		}
		dst.Normalize(now)
		src.Release()
		src.Normalize(now)

		if err := r.Sessions.Relabel(ctx, sess.SessionID, to); err != nil {
			return err
		}
		if err := r.Tables.UpsertMany(ctx, []table.TableStatus{*src, *dst}); err != nil {
			return err
		}
		sess.TableLabel = to
		moved = session.Moved{Session: *sess, From: *src, To: *dst}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session moved", "from", from, "to", to, "session_id", moved.Session.SessionID)
	return &moved, nil
}

// ForceFree closes any running session on label without a bill and
// releases the table.
func (s *Service) ForceFree(ctx context.Context, label string) (*table.TableStatus, error) {
	label = strings.TrimSpace(label)
	unlock, err := s.locker.Lock(ctx, label)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now().UTC()
	var rec *table.TableStatus
	err = s.store.InTx(ctx, func(r Repos) error {
		sess, err := r.Sessions.ActiveByTable(ctx, label)
		switch {
		case err == nil:
			if err := r.Sessions.Close(ctx, sess.SessionID, now); err != nil {
				return err
			}
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		rec, err = r.Tables.Mutate(ctx, label, func(t *table.TableStatus, found bool) error {
			if !found && sess == nil {
				return ErrTableNotFound
			}
			t.Release()
			t.Normalize(now)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("table force-freed", "label", label)
	return rec, nil
}

// Items returns the item lines of the running session on label.
func (s *Service) Items(ctx context.Context, label string) ([]billing.ItemLine, error) {
	r := s.store.Repos()
	sess, err := r.Sessions.ActiveByTable(ctx, label)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	return r.Items.List(ctx, sess.SessionID)
}

// ReplaceItems replaces the item list of the running session on label.
// Lines without an id get one.
func (s *Service) ReplaceItems(ctx context.Context, label string, items []billing.ItemLine) ([]billing.ItemLine, error) {
	if err := billing.ValidateItems(items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	unlock, err := s.locker.Lock(ctx, label)
	if err != nil {
		return nil, err
	}
	defer unlock()

	lines := make([]billing.ItemLine, len(items))
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if strings.TrimSpace(item.ItemID) == "" {
			item.ItemID = s.newID()
		}
		lines[i] = item
	}

	err = s.store.InTx(ctx, func(r Repos) error {
		sess, err := r.Sessions.ActiveByTable(ctx, label)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return err
		}
		return r.Items.Replace(ctx, sess.SessionID, lines)
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ListBills returns the bills matching filter.
func (s *Service) ListBills(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error) {
	return s.store.Repos().Bills.List(ctx, filter)
}

// GetBill returns a bill by id.
func (s *Service) GetBill(ctx context.Context, id string) (*billing.Bill, error) {
	bill, err := s.store.Repos().Bills.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBillNotFound
	}
	return bill, err
}

// ActiveSessions returns every running session.
func (s *Service) ActiveSessions(ctx context.Context) ([]billing.Session, error) {
	return s.store.Repos().Sessions.Active(ctx)
}

// ListSessions returns session history matching filter.
func (s *Service) ListSessions(ctx context.Context, filter billing.SessionFilter) ([]billing.Session, error) {
	return s.store.Repos().Sessions.List(ctx, filter)
}

// GetRate returns the per-minute rate; zero when never set.
func (s *Service) GetRate(ctx context.Context) (money.Money, error) {
	rate, err := s.store.Repos().Settings.GetRate(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return money.Zero, nil
	}
	return rate, err
}

// SetRate replaces the per-minute rate.
func (s *Service) SetRate(ctx context.Context, perMinute money.Money) error {
	if perMinute.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidInput)
	}
	return s.store.Repos().Settings.SetRate(ctx, perMinute)
}

// TimeCost charges every started minute between start and end, with a
// minimum of one minute.
func TimeCost(start, end time.Time, perMinute money.Money) (money.Money, error) {
	elapsed := end.Sub(start)
	minutes := int64(elapsed / time.Minute)
	if elapsed%time.Minute > 0 {
		minutes++
	}
	if minutes < 1 {
		minutes = 1
	}
	cost, err := perMinute.CheckedMul(minutes)
	if err != nil {
		return money.Zero, fmt.Errorf("time cost: %w", err)
	}
	return cost, nil
}

func (s *Service) prepare(rec *table.TableStatus) error {
	if strings.TrimSpace(rec.Label) == "" {
		return fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}
	rec.Touch(s.now())
	return nil
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository"
	"github.com/rpggio/tabletime/internal/tier"
)

// Service is the billing query layer. Bills, sessions and item lines are
// owned by the remote service, so every operation is remote-only.
//
// List operations never return a nil slice: when the remote tier is down
// they return an empty slice together with ErrRemoteUnavailable.
type Service struct {
	remote   Remote
	selector *tier.Selector
	logger   *slog.Logger
}

// NewService creates a billing service. remote may be nil when the venue
// runs without a remote service.
func NewService(remote Remote, selector *tier.Selector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if selector == nil {
		selector = tier.NewSelector(nil, 0, logger)
	}
	return &Service{remote: remote, selector: selector, logger: logger}
}

// ListBills returns the bills matching filter.
func (s *Service) ListBills(ctx context.Context, filter BillFilter) ([]Bill, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return []Bill{}, fmt.Errorf("%w: from is after to", ErrInvalidInput)
	}
	var bills []Bill
	err := s.call(ctx, "list_bills", func(ctx context.Context) (err error) {
		bills, err = s.remote.ListBills(ctx, filter)
		return err
	})
	return nonNil(bills), err
}

// GetBill returns the bill with the given id.
func (s *Service) GetBill(ctx context.Context, id string) (*Bill, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: bill id is required", ErrInvalidInput)
	}
	var bill *Bill
	err := s.call(ctx, "get_bill", func(ctx context.Context) (err error) {
		bill, err = s.remote.GetBill(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ListItems returns the item lines of the active session on label.
func (s *Service) ListItems(ctx context.Context, label string) ([]ItemLine, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return []ItemLine{}, fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}
	var items []ItemLine
	err := s.call(ctx, "list_items", func(ctx context.Context) (err error) {
		items, err = s.remote.ListItems(ctx, label)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return []ItemLine{}, ErrNoActiveSession
	}
	return nonNil(items), err
}

// ReplaceItems replaces the whole item list of the active session on label.
func (s *Service) ReplaceItems(ctx context.Context, label string, items []ItemLine) ([]ItemLine, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []ItemLine{}
	}

	var saved []ItemLine
	err := s.call(ctx, "replace_items", func(ctx context.Context) (err error) {
		saved, err = s.remote.ReplaceItems(ctx, label, items)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	return nonNil(saved), nil
}

// ActiveSessions returns every running session.
func (s *Service) ActiveSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := s.call(ctx, "active_sessions", func(ctx context.Context) (err error) {
		sessions, err = s.remote.ActiveSessions(ctx)
		return err
	})
	return nonNil(sessions), err
}

// ActiveSessionFor returns the running session on label, or
// ErrNoActiveSession.
func (s *Service) ActiveSessionFor(ctx context.Context, label string) (*Session, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: table label is required", ErrInvalidInput)
	}
	sessions, err := s.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].TableLabel == label && sessions[i].Status == StatusActive {
			return &sessions[i], nil
		}
	}
	return nil, ErrNoActiveSession
}

// ListSessions returns session history matching filter, newest first.
func (s *Service) ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	if filter.Limit < 0 {
		return []Session{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	var sessions []Session
	err := s.call(ctx, "list_sessions", func(ctx context.Context) (err error) {
		sessions, err = s.remote.ListSessions(ctx, filter)
		return err
	})
	return nonNil(sessions), err
}

// ValidateItems checks a replacement item list. Line totals and their sum
// must fit in Money.
func ValidateItems(items []ItemLine) error {
	total := money.Zero
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %q quantity must be positive", ErrInvalidInput, item.Name)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %q price must not be negative", ErrInvalidInput, item.Name)
		}
		line, err := item.UnitPrice.CheckedMul(item.Quantity)
		if err == nil {
			total, err = total.CheckedAdd(line)
		}
		if err != nil {
			return fmt.Errorf("%w: item %q: %w", ErrInvalidInput, item.Name, err)
		}
	}
	return nil
}

func (s *Service) call(ctx context.Context, op string, fn tier.Attempt) error {
	if s.remote == nil {
		return fmt.Errorf("%s: %w: remote service not configured", op, ErrRemoteUnavailable)
	}
	err := s.selector.TryRemote(ctx, op, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && !errors.Is(err, tier.ErrUnavailable) {
			return tier.Final(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

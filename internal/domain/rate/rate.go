// Package rate reads and writes the venue-wide per-minute billing rate.
package rate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/tier"
)

var (
	// ErrInvalidRate indicates a negative rate.
	ErrInvalidRate = errors.New("invalid rate")
	// ErrRemoteUnavailable indicates the remote service could not be reached.
	ErrRemoteUnavailable = tier.ErrUnavailable
)

// Remote is the settings API of the remote service tier.
type Remote interface {
	GetRate(ctx context.Context) (money.Money, error)
	SetRate(ctx context.Context, perMinute money.Money) error
}

// Service accesses the per-minute rate. Nothing is cached: every call goes
// to the remote service.
type Service struct {
	remote   Remote
	selector *tier.Selector
	logger   *slog.Logger
}

// NewService creates a rate service.
func NewService(remote Remote, selector *tier.Selector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if selector == nil {
		selector = tier.NewSelector(nil, 0, logger)
	}
	return &Service{remote: remote, selector: selector, logger: logger}
}

// Get returns the current per-minute rate.
func (s *Service) Get(ctx context.Context) (money.Money, error) {
	var perMinute money.Money
	err := s.call(ctx, "get_rate", func(ctx context.Context) (err error) {
		perMinute, err = s.remote.GetRate(ctx)
		return err
	})
	if err != nil {
		return money.Zero, err
	}
	return perMinute, nil
}

// Set replaces the per-minute rate.
func (s *Service) Set(ctx context.Context, perMinute money.Money) error {
	if perMinute.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidRate, perMinute)
	}
	err := s.call(ctx, "set_rate", func(ctx context.Context) error {
		return s.remote.SetRate(ctx, perMinute)
	})
	if err != nil {
		return err
	}
	s.logger.Info("rate updated", "per_minute", perMinute.String())
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

package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpggio/tabletime/internal/domain/billing"
)

// Resolver produces the identity a payment is attached to by running an
// ordered chain of strategies until one yields a valid pair.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewResolver creates a resolver with the standard chain: bill fields,
// refetched bill, active session on the bill's table, synthesized identity.
// Nil lookups skip their step.
func NewResolver(bills BillLookup, sessions ActiveSessionLookup, tables TableLookup, logger *slog.Logger) *Resolver {
	return NewResolverWithStrategies(logger,
		BillFields(),
		RefetchBill(bills),
		ActiveTableSession(sessions, tables),
		Synthesize(),
	)
}

// NewResolverWithStrategies creates a resolver running strategies in order.
func NewResolverWithStrategies(logger *slog.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// Resolve returns a validated identity for bill. A strategy that fails is
// logged and skipped. ErrUnresolved is returned when no strategy produced a
// valid pair, which happens when the bill has no id of its own and nothing
// else identifies it. Callers must check Synthesized before treating the
// result as a confirmed session.
func (r *Resolver) Resolve(ctx context.Context, bill billing.Bill) (Identity, error) {
	var last Identity
	for _, strategy := range r.strategies {
		if err := ctx.Err(); err != nil {
			return Identity{}, err
		}
		id, ok, err := strategy.Resolve(ctx, bill)
		if err != nil {
			r.logger.Warn("payment identity strategy failed",
				"strategy", strategy.Name(), "bill_id", bill.BillID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		last = id
		if Validate(id) == nil {
			if id.Synthesized {
				r.logger.Warn("payment identity synthesized", "bill_id", bill.BillID, "session_id", id.SessionID)
			}
			return id, nil
		}
	}

	return last, fmt.Errorf("%w: bill %q: %w", ErrUnresolved, bill.BillID, Validate(last))
}

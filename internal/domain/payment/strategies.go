package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/rpggio/tabletime/internal/domain/billing"
)

// Strategy names, in chain order.
const (
	StrategyBillFields    = "bill_fields"
	StrategyRefetchBill   = "refetch_bill"
	StrategyActiveSession = "active_table_session"
	StrategySynthesize    = "synthesize"
)

type billFields struct{}

// BillFields uses the identifiers carried by the bill itself.
func BillFields() Strategy { return billFields{} }

func (billFields) Name() string { return StrategyBillFields }

func (billFields) Resolve(_ context.Context, bill billing.Bill) (Identity, bool, error) {
	id, ok := pair(bill.SessionID, bill.BillingID, StrategyBillFields)
	return id, ok, nil
}

type refetchBill struct {
	bills BillLookup
}

// RefetchBill loads the complete bill by id and uses its identifiers.
func RefetchBill(bills BillLookup) Strategy { return refetchBill{bills: bills} }

func (refetchBill) Name() string { return StrategyRefetchBill }

func (s refetchBill) Resolve(ctx context.Context, bill billing.Bill) (Identity, bool, error) {
	if s.bills == nil || strings.TrimSpace(bill.BillID) == "" {
		return Identity{}, false, nil
	}
	full, err := s.bills.GetBill(ctx, bill.BillID)
	if err != nil {
		if errors.Is(err, billing.ErrBillNotFound) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	id, ok := pair(full.SessionID, full.BillingID, StrategyRefetchBill)
	return id, ok, nil
}

type activeTableSession struct {
	sessions ActiveSessionLookup
	tables   TableLookup
}

// ActiveTableSession uses the session currently running on the bill's
// table. When tables is set and reports the table free, the session lookup
// is skipped.
func ActiveTableSession(sessions ActiveSessionLookup, tables TableLookup) Strategy {
	return activeTableSession{sessions: sessions, tables: tables}
}

func (activeTableSession) Name() string { return StrategyActiveSession }

func (s activeTableSession) Resolve(ctx context.Context, bill billing.Bill) (Identity, bool, error) {
	label := strings.TrimSpace(bill.TableLabel)
	if s.sessions == nil || label == "" {
		return Identity{}, false, nil
	}
	if s.tables != nil {
		// The table record is advisory: a known free table has no session,
		// anything else is left to the session lookup.
		if rec, err := s.tables.GetTable(ctx, label); err == nil && !rec.Occupied {
			return Identity{}, false, nil
		}
	}
	sess, err := s.sessions.ActiveSessionFor(ctx, label)
	if err != nil {
		if errors.Is(err, billing.ErrNoActiveSession) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	id, ok := pair(sess.SessionID, sess.BillingID, StrategyActiveSession)
	return id, ok, nil
}

type synthesize struct {
	newID func() string
}

// Synthesize generates a fresh session id and reuses the bill id as the
// billing id. It is the last resort and marks the identity Synthesized.
func Synthesize() Strategy { return synthesize{newID: uuid.NewString} }

func (synthesize) Name() string { return StrategySynthesize }

func (s synthesize) Resolve(_ context.Context, bill billing.Bill) (Identity, bool, error) {
	return Identity{
		SessionID:   s.newID(),
		BillingID:   strings.TrimSpace(bill.BillID),
		Strategy:    StrategySynthesize,
		Synthesized: true,
	}, true, nil
}

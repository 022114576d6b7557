// Package mocks provides testify mocks for the tier interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
)

// TableStore is a mock for table.Store.
type TableStore struct {
	mock.Mock
}

func (m *TableStore) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *TableStore) List(ctx context.Context) ([]table.TableStatus, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]table.TableStatus); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TableStore) Get(ctx context.Context, label string) (*table.TableStatus, error) {
	args := m.Called(ctx, label)
	if rec, ok := args.Get(0).(*table.TableStatus); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TableStore) Upsert(ctx context.Context, rec table.TableStatus) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *TableStore) UpsertMany(ctx context.Context, recs []table.TableStatus) error {
	args := m.Called(ctx, recs)
	return args.Error(0)
}

func (m *TableStore) Seed(ctx context.Context, recs []table.TableStatus) error {
	args := m.Called(ctx, recs)
	return args.Error(0)
}

// Mutate runs fn against the record returned by the expectation (or an
// empty record) when the expectation's error is nil.
func (m *TableStore) Mutate(ctx context.Context, label string, fn table.MutateFunc) (*table.TableStatus, error) {
	args := m.Called(ctx, label, fn)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	rec := &table.TableStatus{Label: label}
	found := false
	if existing, ok := args.Get(0).(*table.TableStatus); ok && existing != nil {
		copied := *existing
		rec, found = &copied, true
	}
	if err := fn(rec, found); err != nil {
		return nil, err
	}
	return rec, nil
}

// RemoteTables is a mock for table.RemoteTables.
type RemoteTables struct {
	mock.Mock
}

func (m *RemoteTables) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *RemoteTables) ListTables(ctx context.Context) ([]table.TableStatus, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]table.TableStatus); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RemoteTables) GetTable(ctx context.Context, label string) (*table.TableStatus, error) {
	args := m.Called(ctx, label)
	if rec, ok := args.Get(0).(*table.TableStatus); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RemoteTables) UpsertTable(ctx context.Context, rec table.TableStatus) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RemoteTables) BulkUpsertTables(ctx context.Context, recs []table.TableStatus) error {
	args := m.Called(ctx, recs)
	return args.Error(0)
}

func (m *RemoteTables) SeedTables(ctx context.Context, recs []table.TableStatus) error {
	args := m.Called(ctx, recs)
	return args.Error(0)
}

// SessionRemote is a mock for session.Remote.
type SessionRemote struct {
	mock.Mock
}

func (m *SessionRemote) StartSession(ctx context.Context, label string, req session.StartRequest) (*session.Started, error) {
	args := m.Called(ctx, label, req)
	if started, ok := args.Get(0).(*session.Started); ok {
		return started, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRemote) StopSession(ctx context.Context, label string) (*billing.Bill, error) {
	args := m.Called(ctx, label)
	if bill, ok := args.Get(0).(*billing.Bill); ok {
		return bill, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRemote) MoveSession(ctx context.Context, from, to string) (*session.Moved, error) {
	args := m.Called(ctx, from, to)
	if moved, ok := args.Get(0).(*session.Moved); ok {
		return moved, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRemote) ForceFree(ctx context.Context, label string) (*table.TableStatus, error) {
	args := m.Called(ctx, label)
	if rec, ok := args.Get(0).(*table.TableStatus); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

// BillingRemote is a mock for billing.Remote.
type BillingRemote struct {
	mock.Mock
}

func (m *BillingRemote) ListBills(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]billing.Bill); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BillingRemote) GetBill(ctx context.Context, id string) (*billing.Bill, error) {
	args := m.Called(ctx, id)
	if bill, ok := args.Get(0).(*billing.Bill); ok {
		return bill, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BillingRemote) ListItems(ctx context.Context, label string) ([]billing.ItemLine, error) {
	args := m.Called(ctx, label)
	if list, ok := args.Get(0).([]billing.ItemLine); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BillingRemote) ReplaceItems(ctx context.Context, label string, items []billing.ItemLine) ([]billing.ItemLine, error) {
	args := m.Called(ctx, label, items)
	if list, ok := args.Get(0).([]billing.ItemLine); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BillingRemote) ActiveSessions(ctx context.Context) ([]billing.Session, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]billing.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BillingRemote) ListSessions(ctx context.Context, filter billing.SessionFilter) ([]billing.Session, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]billing.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// RateRemote is a mock for rate.Remote.
type RateRemote struct {
	mock.Mock
}

func (m *RateRemote) GetRate(ctx context.Context) (money.Money, error) {
	args := m.Called(ctx)
	return args.Get(0).(money.Money), args.Error(1)
}

func (m *RateRemote) SetRate(ctx context.Context, perMinute money.Money) error {
	args := m.Called(ctx, perMinute)
	return args.Error(0)
}

// BillLookup is a mock for payment.BillLookup.
type BillLookup struct {
	mock.Mock
}

func (m *BillLookup) GetBill(ctx context.Context, id string) (*billing.Bill, error) {
	args := m.Called(ctx, id)
	if bill, ok := args.Get(0).(*billing.Bill); ok {
		return bill, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActiveSessionLookup is a mock for payment.ActiveSessionLookup.
type ActiveSessionLookup struct {
	mock.Mock
}

func (m *ActiveSessionLookup) ActiveSessionFor(ctx context.Context, label string) (*billing.Session, error) {
	args := m.Called(ctx, label)
	if sess, ok := args.Get(0).(*billing.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

// TableLookup is a mock for payment.TableLookup.
type TableLookup struct {
	mock.Mock
}

func (m *TableLookup) GetTable(ctx context.Context, label string) (*table.TableStatus, error) {
	args := m.Called(ctx, label)
	rec, _ := args.Get(0).(*table.TableStatus)
	return rec, args.Error(1)
}

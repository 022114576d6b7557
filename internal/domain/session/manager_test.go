package session_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/local"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository"
	"github.com/rpggio/tabletime/internal/repository/mocks"
	"github.com/rpggio/tabletime/internal/tier"
)

var (
	errTransport = fmt.Errorf("%w: connection refused", tier.ErrUnavailable)
	clock        = time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
)

type fixture struct {
	remote *mocks.SessionRemote
	local  *local.FileStore
	tables *table.Service
	mgr    *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		remote: &mocks.SessionRemote{},
		local:  local.NewFileStore(filepath.Join(t.TempDir(), "tables.json")),
	}
	now := func() time.Time { return clock }
	selector := tier.NewSelector(nil, time.Second, nil)
	f.tables = table.NewService(table.Config{Local: f.local, Selector: selector, Now: now})
	f.mgr = session.NewManager(session.Config{
		Remote:   f.remote,
		Tables:   f.tables,
		Selector: selector,
		Now:      now,
	})
	require.NoError(t, f.local.Seed(context.Background(), []table.TableStatus{
		{Label: "T1", Type: "pool", UpdatedAt: clock},
		{Label: "T2", Type: "pool", UpdatedAt: clock},
	}))
	return f
}

func TestManager_StartOnRemote(t *testing.T) {
	f := newFixture(t)
	req := session.StartRequest{Label: "T1", ServerID: "alice"}
	f.remote.On("StartSession", mock.Anything, "T1", req).Return(&session.Started{
		Session: billing.Session{SessionID: "s-1", BillingID: "b-1", TableLabel: "T1", Status: billing.StatusActive},
		Table:   table.TableStatus{Label: "T1", Occupied: true, StartTime: &clock},
	}, nil)

	res, err := f.mgr.Start(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Degraded)
	require.Equal(t, tier.Remote, res.Source)
	require.Equal(t, "s-1", res.Session.SessionID)
	require.True(t, res.Table.Occupied)

	rec, err := f.local.Get(context.Background(), "T1")
	require.NoError(t, err)
	require.False(t, rec.Occupied, "remote start must not touch the local tier")
}

func TestManager_StartConflictIsNotDegraded(t *testing.T) {
	f := newFixture(t)
	f.remote.On("StartSession", mock.Anything, "T1", mock.Anything).
		Return(nil, fmt.Errorf("409 table is occupied: %w", repository.ErrConflict))

	_, err := f.mgr.Start(context.Background(), session.StartRequest{Label: "T1"})
	require.ErrorIs(t, err, session.ErrTableOccupied)

	rec, err := f.local.Get(context.Background(), "T1")
	require.NoError(t, err)
	require.False(t, rec.Occupied)
}

func TestManager_StartClientErrorIsNotDegraded(t *testing.T) {
	f := newFixture(t)
	f.remote.On("StartSession", mock.Anything, "T1", mock.Anything).
		Return(nil, fmt.Errorf("401 unauthorized"))

	_, err := f.mgr.Start(context.Background(), session.StartRequest{Label: "T1"})
	require.Error(t, err)
	require.NotErrorIs(t, err, session.ErrRemoteUnavailable)

	rec, err := f.local.Get(context.Background(), "T1")
	require.NoError(t, err)
	require.False(t, rec.Occupied)
}

func TestManager_StartDegraded(t *testing.T) {
	f := newFixture(t)
	f.remote.On("StartSession", mock.Anything, "T1", mock.Anything).Return(nil, errTransport)

	res, err := f.mgr.Start(context.Background(), session.StartRequest{Label: "T1", ServerID: "alice"})
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, tier.Local, res.Source)
	require.Nil(t, res.Session)
	require.True(t, res.Table.Occupied)
	require.True(t, res.Table.StartTime.Equal(clock))
	require.Nil(t, res.Table.OrderID)
	require.Equal(t, "alice", *res.Table.Server)

	rec, err := f.local.Get(context.Background(), "T1")
	require.NoError(t, err)
	require.True(t, rec.Occupied)
	require.Equal(t, "pool", rec.Type)

	_, err = f.mgr.Start(context.Background(), session.StartRequest{Label: "T1"})
	require.ErrorIs(t, err, session.ErrTableOccupied)
}

func TestManager_StartWithoutRemote(t *testing.T) {
	f := newFixture(t)
	mgr := session.NewManager(session.Config{Tables: f.tables, Now: func() time.Time { return clock }})

	res, err := mgr.Start(context.Background(), session.StartRequest{Label: "T3"})
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, "T3", res.Table.Label)
	require.True(t, res.Table.Occupied)
}

func TestManager_StopOnRemote(t *testing.T) {
	f := newFixture(t)
	end := clock.Add(20 * time.Minute)
	f.remote.On("StopSession", mock.Anything, "T1").Return(&billing.Bill{
		BillID:      "bill-1",
		SessionID:   "s-1",
		BillingID:   "b-1",
		TableLabel:  "T1",
		StartTime:   clock,
		EndTime:     &end,
		TimeCost:    money.MustParse("2.00"),
		TotalAmount: money.MustParse("2.00"),
	}, nil)

	res, err := f.mgr.Stop(context.Background(), "T1")
	require.NoError(t, err)
	require.False(t, res.Degraded)
	require.Equal(t, "bill-1", res.Bill.BillID)
	require.Equal(t, "2.00", res.Bill.TotalAmount.String())
}

func TestManager_StopWithoutSession(t *testing.T) {
	f := newFixture(t)
	f.remote.On("StopSession", mock.Anything, "T1").Return(nil, repository.ErrNotFound)

	_, err := f.mgr.Stop(context.Background(), "T1")
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestManager_StopDegraded(t *testing.T) {
	f := newFixture(t)
	f.remote.On("StartSession", mock.Anything, "T1", mock.Anything).Return(nil, errTransport)
	f.remote.On("StopSession", mock.Anything, "T1").Return(nil, errTransport)
	f.remote.On("StopSession", mock.Anything, "T2").Return(nil, errTransport)
	f.remote.On("StopSession", mock.Anything, "T9").Return(nil, errTransport)

	_, err := f.mgr.Start(context.Background(), session.StartRequest{Label: "T1"})
	require.NoError(t, err)

	res, err := f.mgr.Stop(context.Background(), "T1")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Nil(t, res.Bill)
	require.False(t, res.Table.Occupied)
	require.Nil(t, res.Table.StartTime)
	require.Nil(t, res.Table.Server)

	// T2 reads free offline but may be running on the remote tier.
	res, err = f.mgr.Stop(context.Background(), "T2")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, tier.Local, res.Source)
	require.False(t, res.Table.Occupied)

	_, err = f.mgr.Stop(context.Background(), "T9")
	require.ErrorIs(t, err, table.ErrTableNotFound)

	// A rejected degraded stop must not create a record.
	_, err = f.local.Get(context.Background(), "T9")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestManager_MoveRequiresRemote(t *testing.T) {
	f := newFixture(t)
	f.remote.On("MoveSession", mock.Anything, "T1", "T2").Return(nil, errTransport)

	_, err := f.mgr.Move(context.Background(), "T1", "T2")
	require.ErrorIs(t, err, session.ErrRemoteUnavailable)
	require.Contains(t, err.Error(), "try again when online")
}

func TestManager_MoveValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Move(context.Background(), "T1", " T1 ")
	require.ErrorIs(t, err, session.ErrInvalidInput)

	_, err = f.mgr.Move(context.Background(), "", "T2")
	require.ErrorIs(t, err, session.ErrInvalidInput)
	f.remote.AssertNotCalled(t, "MoveSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_Move(t *testing.T) {
	f := newFixture(t)
	f.remote.On("MoveSession", mock.Anything, "T1", "T2").Return(&session.Moved{
		Session: billing.Session{SessionID: "s-1", TableLabel: "T2", Status: billing.StatusActive},
		From:    table.TableStatus{Label: "T1"},
		To:      table.TableStatus{Label: "T2", Occupied: true, StartTime: &clock},
	}, nil)
	f.remote.On("MoveSession", mock.Anything, "T1", "T3").Return(nil, repository.ErrConflict)

	res, err := f.mgr.Move(context.Background(), "T1", "T2")
	require.NoError(t, err)
	require.Equal(t, "T2", res.Session.TableLabel)
	require.True(t, res.To.Occupied)
	require.False(t, res.From.Occupied)

	_, err = f.mgr.Move(context.Background(), "T1", "T3")
	require.ErrorIs(t, err, session.ErrTableOccupied)
}

func TestManager_ForceFree(t *testing.T) {
	f := newFixture(t)
	f.remote.On("ForceFree", mock.Anything, "T1").Return(&table.TableStatus{Label: "T1"}, nil)
	f.remote.On("ForceFree", mock.Anything, "T2").Return(nil, errTransport)

	res, err := f.mgr.ForceFree(context.Background(), "T1")
	require.NoError(t, err)
	require.False(t, res.Degraded)
	require.Nil(t, res.Bill)

	require.NoError(t, f.local.Upsert(context.Background(), table.TableStatus{Label: "T2", Occupied: true, StartTime: &clock}))
	res, err = f.mgr.ForceFree(context.Background(), "T2")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.False(t, res.Table.Occupied)
}

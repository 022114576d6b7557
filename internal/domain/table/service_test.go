package table_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/repository"
	"github.com/rpggio/tabletime/internal/repository/mocks"
	"github.com/rpggio/tabletime/internal/tier"
)

var (
	errTransport = fmt.Errorf("%w: dial tcp: connection refused", tier.ErrUnavailable)
	errDBDown    = errors.New("database is locked")
	fixedNow     = time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
)

type tiers struct {
	remote *mocks.RemoteTables
	db     *mocks.TableStore
	local  *mocks.TableStore
	svc    *table.Service
}

func newTiers() *tiers {
	tr := &tiers{
		remote: &mocks.RemoteTables{},
		db:     &mocks.TableStore{},
		local:  &mocks.TableStore{},
	}
	tr.svc = table.NewService(table.Config{
		Remote:   tr.remote,
		Database: tr.db,
		Local:    tr.local,
		Now:      func() time.Time { return fixedNow },
	})
	return tr
}

func TestTableService_GetAllFromRemote(t *testing.T) {
	tr := newTiers()
	tr.remote.On("ListTables", mock.Anything).Return([]table.TableStatus{{Label: "T2"}, {Label: "T1"}}, nil)

	snap, err := tr.svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, tier.Remote, snap.Source)
	require.Equal(t, "T1", snap.Tables[0].Label)
	require.Equal(t, "T2", snap.Tables[1].Label)
	tr.db.AssertNotCalled(t, "List", mock.Anything)
	tr.local.AssertNotCalled(t, "List", mock.Anything)
}

func TestTableService_DatabaseDegradesOnce(t *testing.T) {
	tr := newTiers()
	tr.remote.On("ListTables", mock.Anything).Return(nil, errTransport)
	tr.db.On("List", mock.Anything).Return(nil, errDBDown).Once()
	tr.local.On("List", mock.Anything).Return([]table.TableStatus{{Label: "T1"}}, nil)

	for i := 0; i < 3; i++ {
		snap, err := tr.svc.GetAll(context.Background())
		require.NoError(t, err)
		require.Equal(t, tier.Local, snap.Source)
		require.Len(t, snap.Tables, 1)
	}

	tr.remote.AssertNumberOfCalls(t, "ListTables", 3)
	tr.db.AssertNumberOfCalls(t, "List", 1)
	tr.local.AssertNumberOfCalls(t, "List", 3)
	require.Equal(t, tier.Local, tr.svc.Source())
}

func TestTableService_EmptyListIsNotNil(t *testing.T) {
	tr := newTiers()
	tr.remote.On("ListTables", mock.Anything).Return(nil, errTransport)
	tr.db.On("List", mock.Anything).Return([]table.TableStatus(nil), nil)

	snap, err := tr.svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, tier.Database, snap.Source)
	require.NotNil(t, snap.Tables)
	require.Empty(t, snap.Tables)
}

func TestTableService_LocalFailureSurfaces(t *testing.T) {
	tr := newTiers()
	tr.remote.On("ListTables", mock.Anything).Return(nil, errTransport)
	tr.db.On("List", mock.Anything).Return(nil, errDBDown)
	tr.local.On("List", mock.Anything).Return(nil, errors.New("permission denied"))

	_, err := tr.svc.GetAll(context.Background())
	require.ErrorIs(t, err, tier.ErrLocalStore)
}

func TestTableService_GetNotFoundIsFinal(t *testing.T) {
	tr := newTiers()
	tr.remote.On("GetTable", mock.Anything, "T9").Return(nil, repository.ErrNotFound)

	_, served, err := tr.svc.Get(context.Background(), " T9 ")
	require.ErrorIs(t, err, table.ErrTableNotFound)
	require.Equal(t, tier.Remote, served)
	tr.db.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	tr.local.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestTableService_GetBlankLabel(t *testing.T) {
	tr := newTiers()
	_, _, err := tr.svc.Get(context.Background(), "  ")
	require.ErrorIs(t, err, table.ErrInvalidInput)
}

func TestTableService_UpsertNormalizes(t *testing.T) {
	tr := newTiers()
	var sent table.TableStatus
	tr.remote.On("UpsertTable", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(table.TableStatus) }).
		Return(nil)

	served, err := tr.svc.Upsert(context.Background(), table.TableStatus{Label: " T1 ", Occupied: true})
	require.NoError(t, err)
	require.Equal(t, tier.Remote, served)
	require.Equal(t, "T1", sent.Label)
	require.Nil(t, sent.StartTime, "the store settles the start against its own record")
	require.Equal(t, fixedNow, sent.UpdatedAt)
}

func TestTableService_UpsertFreeDropsStartTime(t *testing.T) {
	tr := newTiers()
	start := fixedNow.Add(-time.Hour)
	tr.remote.On("UpsertTable", mock.Anything, mock.MatchedBy(func(rec table.TableStatus) bool {
		return rec.StartTime == nil && !rec.Occupied
	})).Return(nil)

	_, err := tr.svc.Upsert(context.Background(), table.TableStatus{Label: "T1", StartTime: &start})
	require.NoError(t, err)
	tr.remote.AssertExpectations(t)
}

func TestTableService_UpsertRejectsBlankLabel(t *testing.T) {
	tr := newTiers()
	_, err := tr.svc.Upsert(context.Background(), table.TableStatus{})
	require.ErrorIs(t, err, table.ErrInvalidInput)
	tr.remote.AssertNotCalled(t, "UpsertTable", mock.Anything, mock.Anything)
}

func TestTableService_UpsertManyFallsBack(t *testing.T) {
	tr := newTiers()
	tr.remote.On("BulkUpsertTables", mock.Anything, mock.Anything).Return(errTransport)
	tr.db.On("UpsertMany", mock.Anything, mock.MatchedBy(func(recs []table.TableStatus) bool {
		return len(recs) == 2
	})).Return(nil)

	served, err := tr.svc.UpsertMany(context.Background(), []table.TableStatus{{Label: "T1"}, {Label: "T2"}})
	require.NoError(t, err)
	require.Equal(t, tier.Database, served)
}

func TestTableService_SeedRunsOnLocalWithoutOtherTiers(t *testing.T) {
	local := &mocks.TableStore{}
	local.On("Seed", mock.Anything, mock.Anything).Return(nil)
	svc := table.NewService(table.Config{Local: local})

	served, err := svc.Seed(context.Background(), []table.TableStatus{{Label: "T1", Type: "pool"}})
	require.NoError(t, err)
	require.Equal(t, tier.Local, served)
	local.AssertExpectations(t)
}

func TestTableService_GetAvailableLabels(t *testing.T) {
	tr := newTiers()
	tr.remote.On("ListTables", mock.Anything).Return([]table.TableStatus{
		{Label: "T3"},
		{Label: "T1", Occupied: true},
		{Label: "T2"},
	}, nil)

	labels, served, err := tr.svc.GetAvailableLabels(context.Background())
	require.NoError(t, err)
	require.Equal(t, tier.Remote, served)
	require.Equal(t, []string{"T2", "T3"}, labels)
}

func TestTableService_MutateOfflineSkipsRemote(t *testing.T) {
	tr := newTiers()
	tr.db.On("Mutate", mock.Anything, "T1", mock.Anything).Return(&table.TableStatus{Label: "T1", Type: "pool"}, nil)

	rec, served, err := tr.svc.MutateOffline(context.Background(), "T1", func(rec *table.TableStatus, found bool) error {
		require.True(t, found)
		rec.Occupy(fixedNow, "alice")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, tier.Database, served)
	require.True(t, rec.Occupied)
	require.Equal(t, "pool", rec.Type)
	require.Equal(t, "alice", *rec.Server)
	tr.remote.AssertNotCalled(t, "UpsertTable", mock.Anything, mock.Anything)
}

func TestTableService_MutateOfflineRejectionIsFinal(t *testing.T) {
	tr := newTiers()
	tr.db.On("Mutate", mock.Anything, "T1", mock.Anything).Return(&table.TableStatus{Label: "T1", Occupied: true}, nil)
	occupied := errors.New("occupied")

	_, served, err := tr.svc.MutateOffline(context.Background(), "T1", func(rec *table.TableStatus, found bool) error {
		return occupied
	})
	require.ErrorIs(t, err, occupied)
	require.Equal(t, tier.Database, served)
	tr.local.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
	require.Equal(t, tier.Database, tr.svc.Source())
}

func TestTableService_EnsureSchema(t *testing.T) {
	tr := newTiers()
	tr.local.On("EnsureSchema", mock.Anything).Return(nil)
	tr.db.On("EnsureSchema", mock.Anything).Return(errDBDown)
	tr.remote.On("Health", mock.Anything).Return(errTransport)

	served, err := tr.svc.EnsureSchema(context.Background())
	require.NoError(t, err)
	require.Equal(t, tier.Local, served)

	// The relational tier is not retried after a failed schema setup.
	tr.remote.On("ListTables", mock.Anything).Return(nil, errTransport)
	tr.local.On("List", mock.Anything).Return([]table.TableStatus{}, nil)
	_, err = tr.svc.GetAll(context.Background())
	require.NoError(t, err)
	tr.db.AssertNotCalled(t, "List", mock.Anything)
}

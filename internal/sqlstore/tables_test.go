package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/repository"
	"github.com/stretchr/testify/require"
)

func tableRecord(label string, occupied bool) table.TableStatus {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	rec := table.TableStatus{Label: label, Type: "standard", Occupied: occupied, UpdatedAt: now}
	if occupied {
		rec.StartTime = &now
	}
	return rec
}

func TestTableRepository_EnsureSchemaIdempotent(t *testing.T) {
	db, err := New("file:ensure_schema?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	repo := NewTableRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, repo.EnsureSchema(context.Background()))
}

func TestTableRepository_UpsertIsIdempotent(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTableRepository(db)
	ctx := context.Background()

	rec := tableRecord("T1", true)
	require.NoError(t, repo.Upsert(ctx, rec))
	require.NoError(t, repo.Upsert(ctx, rec))

	rec.Type = "booth"
	require.NoError(t, repo.Upsert(ctx, rec))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "booth", all[0].Type)
	require.True(t, all[0].Occupied)
	require.NotNil(t, all[0].StartTime)
	require.True(t, rec.StartTime.Equal(*all[0].StartTime))
}

func TestTableRepository_ListOrderedByLabel(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTableRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertMany(ctx, []table.TableStatus{
		tableRecord("T3", false),
		tableRecord("T1", false),
		tableRecord("T2", true),
	}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"T1", "T2", "T3"}, []string{all[0].Label, all[1].Label, all[2].Label})
}

func TestTableRepository_GetNotFound(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTableRepository(db)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTableRepository_NullableFields(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTableRepository(db)
	ctx := context.Background()

	order := "order-1"
	server := "alice"
	rec := tableRecord("T1", true)
	rec.OrderID = &order
	rec.Server = &server
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.Get(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, "order-1", *got.OrderID)
	require.Equal(t, "alice", *got.Server)

	rec = tableRecord("T1", false)
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err = repo.Get(ctx, "T1")
	require.NoError(t, err)
	require.Nil(t, got.OrderID)
	require.Nil(t, got.Server)
	require.Nil(t, got.StartTime)
}

func TestTableRepository_SeedNeverOverwrites(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTableRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, tableRecord("T1", true)))
	require.NoError(t, repo.Seed(ctx, []table.TableStatus{
		tableRecord("T1", false),
		tableRecord("T2", false),
	}))

	t1, err := repo.Get(ctx, "T1")
	require.NoError(t, err)
	require.True(t, t1.Occupied)

	_, err = repo.Get(ctx, "T2")
	require.NoError(t, err)
}

func TestTableRepository_Mutate(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTableRepository(db)
	ctx := context.Background()

	rec, err := repo.Mutate(ctx, "T9", func(rec *table.TableStatus, found bool) error {
		require.False(t, found)
		rec.Type = "bar"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "bar", rec.Type)

	stop := errors.New("stop")
	_, err = repo.Mutate(ctx, "T9", func(rec *table.TableStatus, found bool) error {
		require.True(t, found)
		rec.Type = "changed"
		return stop
	})
	require.ErrorIs(t, err, stop)

	got, err := repo.Get(ctx, "T9")
	require.NoError(t, err)
	require.Equal(t, "bar", got.Type, "failed mutation must not be written")
}

func TestTableRepository_UpsertManyInTransaction(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.Tables().UpsertMany(ctx, []table.TableStatus{tableRecord("A", false)}))
		return errors.New("abort")
	})
	require.Error(t, err)

	all, err := NewTableRepository(db).List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

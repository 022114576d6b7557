package table_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/local"
	"github.com/rpggio/tabletime/internal/tier"
)

func TestTableService_UpsertKeepsStartOfOccupiedTable(t *testing.T) {
	now := fixedNow
	svc := table.NewService(table.Config{
		Local: local.NewFileStore(filepath.Join(t.TempDir(), "tables.json")),
		Now:   func() time.Time { return now },
	})
	ctx := context.Background()

	_, err := svc.Upsert(ctx, table.TableStatus{Label: "T1", Occupied: true})
	require.NoError(t, err)

	now = fixedNow.Add(45 * time.Minute)
	bob := "bob"
	_, err = svc.Upsert(ctx, table.TableStatus{Label: "T1", Occupied: true, Server: &bob})
	require.NoError(t, err)

	rec, source, err := svc.Get(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, tier.Local, source)
	require.NotNil(t, rec.StartTime)
	require.True(t, rec.StartTime.Equal(fixedNow), "start time %s", rec.StartTime)
	require.Equal(t, "bob", *rec.Server)
	require.True(t, rec.UpdatedAt.Equal(now))

	// Freeing and reoccupying starts a new period.
	_, err = svc.Upsert(ctx, table.TableStatus{Label: "T1"})
	require.NoError(t, err)
	now = fixedNow.Add(time.Hour)
	_, err = svc.UpsertMany(ctx, []table.TableStatus{{Label: "T1", Occupied: true}})
	require.NoError(t, err)

	rec, _, err = svc.Get(ctx, "T1")
	require.NoError(t, err)
	require.True(t, rec.StartTime.Equal(now))
}

func TestTableStatus_Settle(t *testing.T) {
	start := fixedNow.Add(-time.Hour)
	prev := &table.TableStatus{Label: "T1", Occupied: true, StartTime: &start}

	rec := table.TableStatus{Label: "T1", Occupied: true, UpdatedAt: fixedNow}
	rec.Settle(prev)
	require.True(t, rec.StartTime.Equal(start))

	rec = table.TableStatus{Label: "T1", Occupied: true, UpdatedAt: fixedNow}
	rec.Settle(&table.TableStatus{Label: "T1"})
	require.True(t, rec.StartTime.Equal(fixedNow))

	explicit := fixedNow.Add(-time.Minute)
	rec = table.TableStatus{Label: "T1", Occupied: true, StartTime: &explicit, UpdatedAt: fixedNow}
	rec.Settle(prev)
	require.True(t, rec.StartTime.Equal(explicit))

	rec = table.TableStatus{Label: "T1", StartTime: &explicit}
	rec.Settle(prev)
	require.Nil(t, rec.StartTime)
}

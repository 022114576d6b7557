package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/repository"
)

var stamp = time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

func occupied(label string) table.TableStatus {
	start := stamp
	order := "order-1"
	server := "alice"
	return table.TableStatus{
		Label:     label,
		Type:      "standard",
		Occupied:  true,
		OrderID:   &order,
		StartTime: &start,
		Server:    &server,
		UpdatedAt: stamp,
	}
}

func free(label, kind string) table.TableStatus {
	return table.TableStatus{Label: label, Type: kind, UpdatedAt: stamp}
}

// stores runs fn against every local backend.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("file", func(t *testing.T) {
		fn(t, NewFileStore(filepath.Join(t.TempDir(), "tables.json")))
	})
	t.Run("bolt", func(t *testing.T) {
		s, err := OpenBolt(filepath.Join(t.TempDir(), "tables.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestStore_EnsureSchemaStartsEmpty(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.EnsureSchema(ctx))
		require.NoError(t, s.EnsureSchema(ctx))

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.NotNil(t, all)
		require.Empty(t, all)
	})
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.EnsureSchema(ctx))

		require.NoError(t, s.Upsert(ctx, free("T2", "booth")))
		require.NoError(t, s.Upsert(ctx, occupied("T1")))
		require.NoError(t, s.Upsert(ctx, occupied("T1")))

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, "T1", all[0].Label)
		require.Equal(t, "T2", all[1].Label)

		got, err := s.Get(ctx, "T1")
		require.NoError(t, err)
		require.True(t, got.Occupied)
		require.Equal(t, "alice", *got.Server)

		_, err = s.Get(ctx, "T9")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestStore_SeedNeverOverwrites(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, occupied("T1")))
		require.NoError(t, s.Seed(ctx, []table.TableStatus{free("T1", "standard"), free("T2", "booth")}))

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.True(t, all[0].Occupied)
	})
}

func TestStore_Mutate(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		rec, err := s.Mutate(ctx, "T3", func(rec *table.TableStatus, found bool) error {
			require.False(t, found)
			rec.Occupy(stamp, "bob")
			return nil
		})
		require.NoError(t, err)
		require.True(t, rec.Occupied)

		refused := errors.New("refused")
		_, err = s.Mutate(ctx, "T3", func(rec *table.TableStatus, found bool) error {
			require.True(t, found)
			rec.Release()
			return refused
		})
		require.ErrorIs(t, err, refused)

		got, err := s.Get(ctx, "T3")
		require.NoError(t, err)
		require.True(t, got.Occupied, "rejected mutation must not be written")
	})
}

func TestFileStore_DocumentFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tables.json")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.UpsertMany(ctx, []table.TableStatus{free("T2", "booth"), occupied("T1")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "tables", data)
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "tables.json"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, label := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, free(label, "standard")))
		}(label)
	}
	wg.Wait()

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 8)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).List(context.Background())
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(BackendFile, filepath.Join(dir, "t.json"))
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open("", filepath.Join(dir, "t.db"))
	require.NoError(t, err)
	require.IsType(t, &BoltStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("floppy", filepath.Join(dir, "x"))
	require.Error(t, err)
}

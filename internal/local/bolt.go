package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/repository"
)

var tablesBucket = []byte("tables")

// BoltStore keeps one JSON value per label in an embedded bbolt database.
// Each mutation is its own transaction, so writers never rewrite the whole
// list.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the bbolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables bucket.
func (s *BoltStore) EnsureSchema(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tablesBucket)
		return err
	})
}

// List returns every record ordered by label.
func (s *BoltStore) List(ctx context.Context) ([]table.TableStatus, error) {
	tables := []table.TableStatus{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tablesBucket)
		if b == nil {
			return nil
		}
		// Keys iterate in byte order, which is label order.
		return b.ForEach(func(k, v []byte) error {
			var rec table.TableStatus
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			tables = append(tables, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// Get returns the record for label.
func (s *BoltStore) Get(ctx context.Context, label string) (*table.TableStatus, error) {
	var rec *table.TableStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tablesBucket)
		if b == nil {
			return repository.ErrNotFound
		}
		var err error
		rec, err = load(b, label)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Upsert inserts or replaces the record with the same label.
func (s *BoltStore) Upsert(ctx context.Context, rec table.TableStatus) error {
	return s.UpsertMany(ctx, []table.TableStatus{rec})
}

// UpsertMany writes the batch in one transaction.
func (s *BoltStore) UpsertMany(ctx context.Context, recs []table.TableStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(tablesBucket)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			prev, err := load(b, rec.Label)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			rec.Settle(prev)
			if err := store(b, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Seed inserts the records whose labels are not stored yet.
func (s *BoltStore) Seed(ctx context.Context, recs []table.TableStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(tablesBucket)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if b.Get([]byte(rec.Label)) != nil {
				continue
			}
			if err := store(b, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Mutate applies fn to the record for label inside one transaction.
func (s *BoltStore) Mutate(ctx context.Context, label string, fn table.MutateFunc) (*table.TableStatus, error) {
	var out *table.TableStatus
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(tablesBucket)
		if err != nil {
			return err
		}
		rec, err := load(b, label)
		found := err == nil
		if !found {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			rec = &table.TableStatus{Label: label}
		}
		if err := fn(rec, found); err != nil {
			return err
		}
		if err := store(b, *rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func load(b *bolt.Bucket, label string) (*table.TableStatus, error) {
	v := b.Get([]byte(label))
	if v == nil {
		return nil, repository.ErrNotFound
	}
	var rec table.TableStatus
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return &rec, nil
}

func store(b *bolt.Bucket, rec table.TableStatus) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Label, err)
	}
	return b.Put([]byte(rec.Label), v)
}

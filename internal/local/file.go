package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/repository"
)

// FileStore keeps the whole table list in one pretty-printed JSON document.
// Every mutation reads the document, changes it in memory and writes it
// back through a temporary file and a rename. Writers in this process are
// serialized; concurrent processes are not coordinated.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path. Nothing is touched on disk
// until EnsureSchema or the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// Close is a no-op; the document is not held open.
func (s *FileStore) Close() error {
	return nil
}

// EnsureSchema creates the document with an empty list if it is missing.
func (s *FileStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	return s.write([]table.TableStatus{})
}

// List returns every record ordered by label.
func (s *FileStore) List(ctx context.Context) ([]table.TableStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Get returns the record for label.
func (s *FileStore) Get(ctx context.Context, label string) (*table.TableStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].Label == label {
			return &tables[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

// Upsert inserts or replaces the record with the same label.
func (s *FileStore) Upsert(ctx context.Context, rec table.TableStatus) error {
	return s.UpsertMany(ctx, []table.TableStatus{rec})
}

// UpsertMany applies the batch in one read-modify-write.
func (s *FileStore) UpsertMany(ctx context.Context, recs []table.TableStatus) error {
	return s.modify(func(byLabel map[string]table.TableStatus) error {
		for _, rec := range recs {
			if prev, ok := byLabel[rec.Label]; ok {
				rec.Settle(&prev)
			} else {
				rec.Settle(nil)
			}
			byLabel[rec.Label] = rec
		}
		return nil
	})
}

// Seed inserts the records whose labels are not stored yet.
func (s *FileStore) Seed(ctx context.Context, recs []table.TableStatus) error {
	return s.modify(func(byLabel map[string]table.TableStatus) error {
		for _, rec := range recs {
			if _, ok := byLabel[rec.Label]; !ok {
				byLabel[rec.Label] = rec
			}
		}
		return nil
	})
}

// Mutate applies fn to the record for label and writes it back.
func (s *FileStore) Mutate(ctx context.Context, label string, fn table.MutateFunc) (*table.TableStatus, error) {
	var out table.TableStatus
	err := s.modify(func(byLabel map[string]table.TableStatus) error {
		rec, found := byLabel[label]
		if !found {
			rec = table.TableStatus{Label: label}
		}
		if err := fn(&rec, found); err != nil {
			return err
		}
		byLabel[label] = rec
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FileStore) modify(fn func(byLabel map[string]table.TableStatus) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, err := s.read()
	if err != nil {
		return err
	}
	byLabel := make(map[string]table.TableStatus, len(tables))
	for _, t := range tables {
		byLabel[t.Label] = t
	}
	if err := fn(byLabel); err != nil {
		return err
	}

	out := make([]table.TableStatus, 0, len(byLabel))
	for _, t := range byLabel {
		out = append(out, t)
	}
	return s.write(out)
}

// read loads the document. A missing document is an empty list.
func (s *FileStore) read() ([]table.TableStatus, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []table.TableStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	tables := []table.TableStatus{}
	if len(data) == 0 {
		return tables, nil
	}
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	sortByLabel(tables)
	return tables, nil
}

func (s *FileStore) write(tables []table.TableStatus) error {
	sortByLabel(tables)
	data, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tables: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tables-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func sortByLabel(tables []table.TableStatus) {
	sort.Slice(tables, func(i, j int) bool { return tables[i].Label < tables[j].Label })
}

// Package local implements the local durable tier: the last-resort table
// store that has to work when neither the remote service nor the database
// can be reached.
package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpggio/tabletime/internal/domain/table"
)

const appDir = "tabletime"

// Backend names accepted by Open.
const (
	BackendBolt = "bolt"
	BackendFile = "file"
)

// DefaultPath returns the per-user location of the local store for backend.
func DefaultPath(backend string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	name := "tables.db"
	if backend == BackendFile {
		name = "tables.json"
	}
	return filepath.Join(dir, appDir, name), nil
}

// Store is a local table store. Close releases the underlying file.
type Store interface {
	table.Store
	Close() error
}

// Open opens the local store for backend at path. An empty path selects
// DefaultPath.
func Open(backend, path string) (Store, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = BackendBolt
	}
	if path == "" {
		var err error
		if path, err = DefaultPath(backend); err != nil {
			return nil, err
		}
	}
	switch backend {
	case BackendBolt:
		return OpenBolt(path)
	case BackendFile:
		return NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown local backend %q", backend)
	}
}

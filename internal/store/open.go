package store

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the store for backend. For the file backend path is a
// directory; for sqlite it is a directory that will hold state.db.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(afero.NewOsFs(), path)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(path, "state.db"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

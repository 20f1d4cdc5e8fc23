package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FileStore keeps one JSON document per key in a directory.
type FileStore struct {
	codec
}

// NewFileStore creates the directory if needed and returns a store rooted at
// dir on fs.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{codec{kv: &fileKV{fs: fs, dir: dir}}}, nil
}

func (s *FileStore) Close() error {
	return nil
}

type fileKV struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func (f *fileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *fileKV) get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := afero.ReadFile(f.fs, f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// put atomically replaces the file for key.
func (f *fileKV) put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, value, 0o644); err != nil {
		return err
	}
	return f.fs.Rename(tmp, path)
}

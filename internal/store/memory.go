package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps records in process memory. It backs the "memory" storage
// backend and tests.
type MemoryStore struct {
	codec
	mem *memKV
}

func NewMemoryStore() *MemoryStore {
	mem := &memKV{data: make(map[string][]byte)}
	return &MemoryStore{codec: codec{kv: mem}, mem: mem}
}

func (s *MemoryStore) Close() error {
	return nil
}

// Set stores raw bytes under key, bypassing encoding. It is not counted as a
// write.
func (s *MemoryStore) Set(key string, value []byte) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	s.mem.data[key] = slices.Clone(value)
}

// Writes returns how many times key was written.
func (s *MemoryStore) Writes(key string) int {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	return s.mem.writes[key]
}

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes map[string]int
}

func (m *memKV) get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return slices.Clone(v), ok, nil
}

func (m *memKV) put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writes == nil {
		m.writes = make(map[string]int)
	}
	m.data[key] = slices.Clone(value)
	m.writes[key]++
	return nil
}

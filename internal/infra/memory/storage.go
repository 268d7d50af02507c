package memory

import (
	"context"
	"sync"
)

// Storage is an in-memory implementation of store.Storage. Nothing survives
// a restart; it backs tests and throwaway practice runs.
type Storage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewStorage() *Storage {
	return &Storage{
		values: make(map[string][]byte),
	}
}

func (s *Storage) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *Storage) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Has reports whether a key is present.
func (s *Storage) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

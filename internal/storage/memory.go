package storage

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryConnectionStore keeps connections in process memory. It is used in
// tests and for single-process development runs; contents are lost on exit.
type MemoryConnectionStore struct {
	items *cache.Cache
}

// NewMemoryConnectionStore creates an empty in-memory store
func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		items: cache.New(cache.NoExpiration, 0),
	}
}

func (s *MemoryConnectionStore) Initialize(ctx context.Context) error { return nil }

func (s *MemoryConnectionStore) Close() error {
	s.items.Flush()
	return nil
}

func (s *MemoryConnectionStore) LookupMirror(ctx context.Context, originTS string) (string, bool, error) {
	v, ok := s.items.Get(originTS)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (s *MemoryConnectionStore) CreateConnection(ctx context.Context, originTS, mirrorTS string) error {
	s.items.Set(originTS, mirrorTS, cache.NoExpiration)
	return nil
}

func (s *MemoryConnectionStore) DeleteConnection(ctx context.Context, originTS string) error {
	s.items.Delete(originTS)
	return nil
}

func (s *MemoryConnectionStore) HealthCheck(ctx context.Context) error { return nil }

// Len reports how many connections are held
func (s *MemoryConnectionStore) Len() int {
	return s.items.ItemCount()
}

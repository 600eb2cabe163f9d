package cachestore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/harun/loom/pkg/interceptor"
)

// DefaultLRUCapacity bounds an LRU store created with a non-positive
// capacity.
const DefaultLRUCapacity = 1024

// LRU is a bounded in-process store. Once full, the least recently used
// entry is evicted to make room.
type LRU struct {
	cache *lru.Cache[string, *interceptor.Entry]
}

// NewLRU creates a store holding at most capacity entries.
func NewLRU(capacity int) (*LRU, error) {
	if capacity <= 0 {
		capacity = DefaultLRUCapacity
	}
	cache, err := lru.New[string, *interceptor.Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: cache}, nil
}

func (s *LRU) Get(ctx context.Context, key string) (*interceptor.Entry, error) {
	entry, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func (s *LRU) Set(ctx context.Context, key string, entry *interceptor.Entry) error {
	s.cache.Add(key, entry)
	return nil
}

func (s *LRU) Delete(ctx context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Len returns the number of stored entries.
func (s *LRU) Len() int {
	return s.cache.Len()
}

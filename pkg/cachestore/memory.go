// Package cachestore provides response cache backends for the cache
// interceptor: an unbounded in-process map, a bounded LRU and a
// sqlite-backed store that survives restarts and can be shared across
// processes.
package cachestore

import (
	"context"
	"sync"

	"github.com/harun/loom/pkg/interceptor"
)

// Memory is an unbounded in-process store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*interceptor.Entry
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*interceptor.Entry)}
}

func (s *Memory) Get(ctx context.Context, key string) (*interceptor.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key], nil
}

func (s *Memory) Set(ctx context.Context, key string, entry *interceptor.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *Memory) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

package session

import (
	"context"
	"sync"
)

// MemoryStore keeps token pairs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Tokens
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Tokens)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[id], nil
}

func (s *MemoryStore) Save(_ context.Context, id string, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = tokens
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

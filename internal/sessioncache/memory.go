package sessioncache

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in-process. Used by tests and by
// deployments that explicitly run without redis.
type MemoryStore struct {
	mu       sync.RWMutex
	session  *TokenPair
	fallback *FallbackAdmin
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveSession(_ context.Context, pair TokenPair) error {
	s.mu.Lock()
	s.session = &pair
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadSession(_ context.Context) (TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return TokenPair{}, ErrNotFound
	}

	return *s.session, nil
}

func (s *MemoryStore) ClearSession(_ context.Context) error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveFallbackAdmin(_ context.Context, rec FallbackAdmin) error {
	s.mu.Lock()
	s.fallback = &rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadFallbackAdmin(_ context.Context) (FallbackAdmin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fallback == nil {
		return FallbackAdmin{}, ErrNotFound
	}

	return *s.fallback, nil
}

func (s *MemoryStore) ClearFallbackAdmin(_ context.Context) error {
	s.mu.Lock()
	s.fallback = nil
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)

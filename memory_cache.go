package renown

import (
	"context"
	"sync"
)

// MemoryTokenCache implements the TokenCache interface in memory
// This is primarily intended for testing purposes
type MemoryTokenCache struct {
	token *CachedToken
	mu    sync.RWMutex
}

// NewMemoryTokenCache creates a new MemoryTokenCache
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

// Load returns a copy of the cached token
func (s *MemoryTokenCache) Load(ctx context.Context) (*CachedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, nil
	}
	cp := *s.token
	return &cp, nil
}

// Save stores a copy of token
func (s *MemoryTokenCache) Save(ctx context.Context, token *CachedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.token = &cp
	return nil
}

// Clear removes the cached token
func (s *MemoryTokenCache) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	return nil
}

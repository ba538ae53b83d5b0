package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/renown/core"
)

// MemoryCredentialStore is an in-memory ports.CredentialStore. It is used in
// tests and single-process deployments.
type MemoryCredentialStore struct {
	records map[string]*core.StoredCredential
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		records: make(map[string]*core.StoredCredential),
		now:     time.Now,
	}
}

func (s *MemoryCredentialStore) Create(ctx context.Context, record *core.StoredCredential) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	if stored.DocumentID == "" {
		stored.DocumentID = uuid.NewString()
	}
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.records[stored.DocumentID] = &stored
	return stored.DocumentID, nil
}

func (s *MemoryCredentialStore) Get(ctx context.Context, filter core.CredentialFilter) (*core.StoredCredential, error) {
	records, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrNotFound
	}
	return records[0], nil
}

func (s *MemoryCredentialStore) List(ctx context.Context, filter core.CredentialFilter) ([]*core.StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.StoredCredential
	for _, r := range s.records {
		if filter.Matches(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryCredentialStore) Revoke(ctx context.Context, id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.records[id]
	if record == nil {
		for _, r := range s.records {
			if r.CredentialID == id {
				record = r
				break
			}
		}
	}
	if record == nil {
		return false, core.ErrNotFound
	}
	if record.Revoked {
		return false, nil
	}

	now := s.now().UTC()
	record.Revoked = true
	record.RevokedAt = &now
	record.RevocationReason = reason
	record.UpdatedAt = now
	return true, nil
}

// Clear removes all records.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*core.StoredCredential)
}

func sortNewestFirst(records []*core.StoredCredential) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].IssuedAt != records[j].IssuedAt {
			return records[i].IssuedAt > records[j].IssuedAt
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

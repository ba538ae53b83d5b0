package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/renown/core"
	"github.com/redis/go-redis/v9"
)

// RedisCredentialStore keeps credential records in Redis. Each record is a
// JSON document with a credential-id index and a per-address sorted set.
type RedisCredentialStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisCredentialStore creates a Redis-backed credential store.
func NewRedisCredentialStore(client redis.UniversalClient) *RedisCredentialStore {
	return &RedisCredentialStore{
		client: client,
		prefix: "renown:credential:",
		now:    time.Now,
	}
}

func (s *RedisCredentialStore) docKey(id string) string { return s.prefix + "doc:" + id }
func (s *RedisCredentialStore) cidKey(id string) string { return s.prefix + "cid:" + id }
func (s *RedisCredentialStore) addrKey(address string) string {
	return s.prefix + "addr:" + strings.ToLower(address)
}

func (s *RedisCredentialStore) Create(ctx context.Context, record *core.StoredCredential) (string, error) {
	stored := *record
	if stored.DocumentID == "" {
		stored.DocumentID = uuid.NewString()
	}
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(stored.DocumentID), data, 0)
		if stored.CredentialID != "" {
			pipe.Set(ctx, s.cidKey(stored.CredentialID), stored.DocumentID, 0)
		}
		if stored.Address != "" {
			pipe.ZAdd(ctx, s.addrKey(stored.Address), redis.Z{
				Score:  float64(stored.IssuedAt),
				Member: stored.DocumentID,
			})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return stored.DocumentID, nil
}

func (s *RedisCredentialStore) Get(ctx context.Context, filter core.CredentialFilter) (*core.StoredCredential, error) {
	records, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrNotFound
	}
	return records[0], nil
}

func (s *RedisCredentialStore) List(ctx context.Context, filter core.CredentialFilter) ([]*core.StoredCredential, error) {
	var ids []string
	switch {
	case filter.DocumentID != "":
		ids = []string{filter.DocumentID}
	case filter.CredentialID != "":
		id, err := s.client.Get(ctx, s.cidKey(filter.CredentialID)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
		ids = []string{id}
	case filter.Address != "":
		members, err := s.client.ZRevRange(ctx, s.addrKey(filter.Address), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
		ids = members
	default:
		return nil, fmt.Errorf("credential lookup requires a document id, credential id or address")
	}

	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	var out []*core.StoredCredential
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var record core.StoredCredential
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to decode credential: %w", err)
		}
		if filter.Matches(&record) {
			out = append(out, &record)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisCredentialStore) Revoke(ctx context.Context, id, reason string) (bool, error) {
	docID, err := s.resolve(ctx, id)
	if err != nil {
		return false, err
	}

	key := s.docKey(docID)
	changed := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		var record core.StoredCredential
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("failed to decode credential: %w", err)
		}
		if record.Revoked {
			return nil
		}

		now := s.now().UTC()
		record.Revoked = true
		record.RevokedAt = &now
		record.RevocationReason = reason
		record.UpdatedAt = now

		data, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}, key)

	if errors.Is(err, redis.Nil) {
		return false, core.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return changed, nil
}

// resolve maps a document or credential id to a document id.
func (s *RedisCredentialStore) resolve(ctx context.Context, id string) (string, error) {
	n, err := s.client.Exists(ctx, s.docKey(id)).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if n > 0 {
		return id, nil
	}

	docID, err := s.client.Get(ctx, s.cidKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return docID, nil
}

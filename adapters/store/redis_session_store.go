package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/renown/core"
	"github.com/redis/go-redis/v9"
)

// consumeScript returns the session and deletes it when it is ready, in one
// round trip.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return false
end
local s = cjson.decode(v)
if s.status == ARGV[1] then
  redis.call('DEL', KEYS[1])
end
return v
`)

// RedisSessionStore shares rendezvous sessions between server instances.
// Key expiry replaces the in-process sweeper.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient, opts ...SessionOption) *RedisSessionStore {
	o := applySessionOptions(opts)
	return &RedisSessionStore{
		client: client,
		prefix: "renown:session:",
		ttl:    o.ttl,
		now:    o.now,
	}
}

func (s *RedisSessionStore) key(id string) string { return s.prefix + id }

func (s *RedisSessionStore) Create(ctx context.Context, sessionID string) (*core.ConsoleSession, bool, error) {
	existing, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	session := &core.ConsoleSession{
		SessionID: sessionID,
		Status:    core.SessionPending,
		CreatedAt: s.now(),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal session: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.key(sessionID), data, s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if !created {
		// Lost a race with another writer.
		existing, err := s.Get(ctx, sessionID)
		if err != nil || existing != nil {
			return existing, false, err
		}
	}
	return session, true, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*core.ConsoleSession, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return s.decodeLive(ctx, sessionID, raw)
}

func (s *RedisSessionStore) Complete(ctx context.Context, sessionID string, data core.SessionCompletion) (*core.ConsoleSession, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = &core.ConsoleSession{
			SessionID: sessionID,
			Status:    core.SessionPending,
			CreatedAt: s.now(),
		}
	}
	session.Apply(data)

	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	remaining := s.ttl - s.now().Sub(session.CreatedAt)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	if err := s.client.Set(ctx, s.key(sessionID), raw, remaining).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return session, nil
}

func (s *RedisSessionStore) Consume(ctx context.Context, sessionID string) (*core.ConsoleSession, error) {
	raw, err := consumeScript.Run(ctx, s.client, []string{s.key(sessionID)}, string(core.SessionReady)).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return s.decodeLive(ctx, sessionID, []byte(raw))
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// decodeLive parses a stored session and treats it as absent once it is
// older than the TTL, even if the key has not expired yet.
func (s *RedisSessionStore) decodeLive(ctx context.Context, sessionID string, raw []byte) (*core.ConsoleSession, error) {
	var session core.ConsoleSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Expired(s.now(), s.ttl) {
		_ = s.client.Del(ctx, s.key(sessionID)).Err()
		return nil, nil
	}
	return &session, nil
}

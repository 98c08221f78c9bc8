package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps init data in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	raw string
}

func NewMemoryStore(raw string) *MemoryStore {
	return &MemoryStore{raw: raw}
}

func (m *MemoryStore) Get(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == "" {
		return "", ErrNoInitData
	}
	return m.raw, nil
}

func (m *MemoryStore) Set(_ context.Context, raw string) error {
	m.mu.Lock()
	m.raw = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context) error {
	m.mu.Lock()
	m.raw = ""
	m.mu.Unlock()
	return nil
}

// RedisStore keeps init data under a single key. The key expires after ttl,
// which should not be shorter than the freshness window.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context) (string, error) {
	raw, err := r.rdb.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoInitData
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return raw, nil
}

func (r *RedisStore) Set(ctx context.Context, raw string) error {
	if err := r.rdb.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

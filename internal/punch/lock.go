package punch

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes the open-session check-then-act per (user, date) key.
// TryAcquire returns ErrConflict when the key is already held.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (release func(), err error)
}

// KeyLock is an in-process locker for single-instance deployments and tests.
type KeyLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyLock creates an empty locker.
func NewKeyLock() *KeyLock {
	return &KeyLock{held: make(map[string]struct{})}
}

// TryAcquire claims the key or fails fast with ErrConflict.
func (l *KeyLock) TryAcquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrConflict
	}
	l.held[key] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

// RedisLock backs the per-key lock with SET NX so multiple API instances
// cannot double-open a session. The TTL bounds lock leakage on crash.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLock creates a redis-backed locker.
func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLock{client: client, ttl: ttl}
}

// TryAcquire claims punchlock:<key> or fails fast with ErrConflict.
func (l *RedisLock) TryAcquire(ctx context.Context, key string) (func(), error) {
	redisKey := "punchlock:" + key
	ok, err := l.client.SetNX(ctx, redisKey, 1, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return func() {
		_ = l.client.Del(context.Background(), redisKey).Err()
	}, nil
}

package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 5 * time.Minute

// Lock coordinates exclusive sweep runs across worker instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock with SETNX and a TTL. Each acquisition writes a
// random token so an expired lock taken over by another instance is never
// released by the previous holder.
type RedisLock struct {
	store redisStore
	name  string
	ttl   time.Duration
	token string
}

func NewRedisLock(store redisStore, name string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if name == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, name: name, ttl: ttl}, nil
}

func (rl *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	acquired, err := rl.store.SetNX(ctx, rl.name, token, rl.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if acquired {
		rl.token = token
	}
	return acquired, nil
}

// Release frees the lock only while this instance still holds it.
func (rl *RedisLock) Release(ctx context.Context) error {
	if rl.token == "" {
		return nil
	}
	holder, err := rl.store.Get(ctx, rl.name)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read lock owner: %w", err)
	case holder != rl.token:
		return nil
	}
	if err := rl.store.Del(ctx, rl.name); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	rl.token = ""
	return nil
}

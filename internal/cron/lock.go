package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/pkg/instance"
)

// Lock keeps two workers from running the same job at once.
type Lock interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, job string) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
	LockKey(env, job string) string
}

// RedisLock stores one SETNX key per job holding a random owner token, so a
// worker never deletes a lock that expired and was taken by another.
type RedisLock struct {
	store lockStore
	env   string

	mu     sync.Mutex
	owners map[string]string
}

func NewRedisLock(store lockStore, env string) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if env == "" {
		env = "local"
	}
	return &RedisLock{store: store, env: env, owners: map[string]string{}}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, job string, ttl time.Duration) (bool, error) {
	owner := instance.ID() + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.store.LockKey(l.env, job), owner, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", job, err)
	}
	if ok {
		l.mu.Lock()
		l.owners[job] = owner
		l.mu.Unlock()
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	owner, held := l.owners[job]
	delete(l.owners, job)
	l.mu.Unlock()
	if !held {
		return nil
	}
	if _, err := l.store.DelIfEquals(ctx, l.store.LockKey(l.env, job), owner); err != nil {
		return fmt.Errorf("release lock %s: %w", job, err)
	}
	return nil
}

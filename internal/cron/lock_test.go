package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) DelIfEquals(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryStore) LockKey(env, job string) string {
	return "fs:lock:" + env + ":" + job
}

func TestRedisLockIsPerJob(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "test")
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "outbox-retention", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Hour, store.ttls["fs:lock:test:outbox-retention"])

	ok, err = lock.Acquire(ctx, "outbox-retention", time.Hour)
	require.NoError(t, err)
	require.False(t, ok, "second acquire of the same job must fail")

	ok, err = lock.Acquire(ctx, "pending-approval-backlog", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "other jobs lock independently")

	require.NoError(t, lock.Release(ctx, "outbox-retention"))
	_, held := store.values["fs:lock:test:outbox-retention"]
	require.False(t, held)
}

func TestRedisLockLeavesForeignOwner(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "")
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// lock expired and another worker took it
	store.values["fs:lock:local:job"] = "someone-else"
	require.NoError(t, lock.Release(ctx, "job"))
	require.Equal(t, "someone-else", store.values["fs:lock:local:job"])
}

func TestRedisLockReleaseWithoutAcquire(t *testing.T) {
	lock, err := NewRedisLock(newMemoryStore(), "test")
	require.NoError(t, err)
	require.NoError(t, lock.Release(context.Background(), "never-acquired"))
}

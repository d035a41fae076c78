package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) DelIfValue(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

const testLockKey = "vt:lock:cron:test"

func TestRedisLockSingleHolder(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, testLockKey, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, testLockKey, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, testLockKey, "non-holder release must not free the lock")

	require.NoError(t, first.Release(ctx))
	ok, _ = second.Acquire(ctx)
	assert.True(t, ok)
}

func TestRedisLockExpiredHolderCannotDropNewHolder(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	stale, _ := NewRedisLock(store, testLockKey, time.Minute)
	fresh, _ := NewRedisLock(store, testLockKey, time.Minute)
	ctx := context.Background()

	_, _ = stale.Acquire(ctx)
	delete(store.values, testLockKey) // lease expired
	ok, _ := fresh.Acquire(ctx)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	assert.Contains(t, store.values, testLockKey)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, testLockKey, 0)
	assert.Error(t, err)
	_, err = NewRedisLock(&memoryLockStore{}, "", 0)
	assert.Error(t, err)

	l, err := NewRedisLock(&memoryLockStore{}, testLockKey, 0)
	require.NoError(t, err)
	assert.Equal(t, fallbackLockTTL, l.ttl)
}

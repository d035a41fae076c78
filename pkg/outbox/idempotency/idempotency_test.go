package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	keys   map[string]time.Duration
	failOn error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{keys: map[string]time.Duration{}}
}

func (r *recordingStore) Get(context.Context, string) (string, error) { return "", nil }

func (r *recordingStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if r.failOn != nil {
		return false, r.failOn
	}
	if _, ok := r.keys[key]; ok {
		return false, nil
	}
	r.keys[key] = ttl
	return true, nil
}

func (r *recordingStore) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	r.keys[key] = ttl
	return nil
}

func (r *recordingStore) IdempotencyKey(scope, id string) string {
	return "vt:idempotency:" + scope + ":" + id
}

func (r *recordingStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(r.keys, k)
	}
	return nil
}

func TestLedgerBeginClaimsOnce(t *testing.T) {
	store := newRecordingStore()
	ledger, err := NewLedger(store, "telegram", 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := ledger.Begin(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := ledger.Begin(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	assert.Equal(t, 24*time.Hour, store.keys["vt:idempotency:delivered:telegram:evt-1"])
}

func TestLedgerAbortAllowsRetry(t *testing.T) {
	store := newRecordingStore()
	ledger, err := NewLedger(store, "telegram", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = ledger.Begin(ctx, "evt-2")
	require.NoError(t, ledger.Abort(ctx, "evt-2"))

	ok, err := ledger.Begin(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedgerConsumersAreIsolated(t *testing.T) {
	store := newRecordingStore()
	a, _ := NewLedger(store, "telegram", time.Hour)
	b, _ := NewLedger(store, "audit", time.Hour)

	okA, _ := a.Begin(context.Background(), "evt-3")
	okB, _ := b.Begin(context.Background(), "evt-3")
	assert.True(t, okA)
	assert.True(t, okB)
}

func TestLedgerErrors(t *testing.T) {
	store := newRecordingStore()
	store.failOn = errors.New("connection refused")
	ledger, err := NewLedger(store, "telegram", time.Hour)
	require.NoError(t, err)

	_, err = ledger.Begin(context.Background(), "evt-4")
	assert.Error(t, err)
	_, err = ledger.Begin(context.Background(), "  ")
	assert.Error(t, err)
	assert.Error(t, ledger.Abort(context.Background(), ""))
}

func TestNewLedgerValidates(t *testing.T) {
	_, err := NewLedger(nil, "telegram", time.Hour)
	assert.Error(t, err)
	_, err = NewLedger(newRecordingStore(), " ", time.Hour)
	assert.Error(t, err)
	_, err = NewLedger(newRecordingStore(), "telegram", 0)
	assert.Error(t, err)
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
)

func TestFixedWindowAllowCountsAndExpiresOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommander()
	client := &Client{cmd: fake}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "reserve:session:s1", 2, 1500*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.EqualValues(t, i+1, count)
	}
	assert.Equal(t, map[string]int64{"vt:rate_limit:reserve:session:s1": 1500}, fake.pexpire)
}

func TestCartHashLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommander()
	client := &Client{cmd: fake}
	key := client.CartKey("sess-1")

	require.NoError(t, client.HSet(ctx, key, "p1|", 2))
	require.NoError(t, client.HSet(ctx, key, "p2|red", 1))
	require.NoError(t, client.Expire(ctx, key, time.Hour))

	fields, err := client.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p1|": "2", "p2|red": "1"}, fields)

	require.NoError(t, client.HDel(ctx, key, "p1|"))
	fields, err = client.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.NotContains(t, fields, "p1|")
	assert.Equal(t, time.Hour, fake.expire["vt:cart:sess-1"])
}

func TestDelIfValueOnlyRemovesOwnedKey(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommander()}

	created, err := client.SetNX(ctx, "vt:lock:cron", "token-a", time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	removed, err := client.DelIfValue(ctx, "vt:lock:cron", "token-b")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = client.DelIfValue(ctx, "vt:lock:cron", "token-a")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = client.Get(ctx, "vt:lock:cron")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestSetOverwritesClaimedKey(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommander()
	client := &Client{cmd: fake}
	key := client.IdempotencyKey("checkout", "k1")

	created, err := client.SetNX(ctx, key, "in-flight", time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, client.Set(ctx, key, "done", time.Hour))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, time.Hour, fake.expire[key])

	assert.ErrorIs(t, (&Client{}).Set(ctx, key, "x", 0), ErrNotInitialized)
}

func TestUninitializedClientErrors(t *testing.T) {
	var client *Client
	assert.ErrorIs(t, client.Ping(context.Background()), ErrNotInitialized)
	assert.NoError(t, client.Close())

	empty := &Client{}
	assert.ErrorIs(t, empty.HSet(context.Background(), "k", "f", 1), ErrNotInitialized)
	_, err := empty.DelIfValue(context.Background(), "k", "v")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "vt:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "vt:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "vt:cart:sess", client.CartKey(" sess "))
	assert.Equal(t, "vt:lock", client.LockKey(""))
	assert.Equal(t, "vt:idempotency:id", client.IdempotencyKey("", "id"))
}

func TestClientOptions(t *testing.T) {
	_, err := clientOptions(config.RedisConfig{})
	require.Error(t, err)

	opts, err := clientOptions(config.RedisConfig{URL: "redis://:pw@cache:6380/3", PoolSize: 20, DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB, "url db wins")
	assert.Equal(t, 20, opts.PoolSize)

	opts, err = clientOptions(config.RedisConfig{Address: "localhost:6379", DB: 2, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

type fakeCommander struct {
	data    map[string]string
	hashes  map[string]map[string]string
	expire  map[string]time.Duration
	pexpire map[string]int64
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		data:    map[string]string{},
		hashes:  map[string]map[string]string{},
		expire:  map[string]time.Duration{},
		pexpire: map[string]int64{},
	}
}

func (f *fakeCommander) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommander) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommander) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	if ttl > 0 {
		f.expire[key] = ttl
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommander) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommander) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expire[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommander) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
		delete(f.hashes, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCommander) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeCommander) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeCommander) HDel(_ context.Context, key string, fields ...string) *redis.IntCmd {
	for _, field := range fields {
		delete(f.hashes[key], field)
	}
	return redis.NewIntResult(int64(len(fields)), nil)
}

// Eval emulates the two scripts the client ships.
func (f *fakeCommander) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case scriptCompareAndDelete:
		if v, ok := f.data[key]; ok && v == fmt.Sprint(args[0]) {
			delete(f.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case scriptWindowIncr:
		n, _ := strconv.ParseInt(f.data[key], 10, 64)
		n++
		f.data[key] = strconv.FormatInt(n, 10)
		if n == 1 {
			f.pexpire[key] = args[0].(int64)
		}
		return redis.NewCmdResult(n, nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script %q", script))
}

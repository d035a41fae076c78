package cart

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newFakeHashClient()
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	if err := store.SetQuantity(ctx, "sess", LineKey{ProductID: "p2", Variant: "M"}, 3); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if err := store.SetQuantity(ctx, "sess", LineKey{ProductID: "p1"}, 1); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	client.hashes["vt:cart:sess"]["junk"] = "x"

	lines, err := store.Lines(ctx, "sess")
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %+v", lines)
	}
	if lines[0].ProductID != "p1" || lines[1].Variant != "M" || lines[1].Quantity != 3 {
		t.Fatalf("unexpected ordering or values %+v", lines)
	}
	if client.ttls["vt:cart:sess"] != time.Hour {
		t.Fatalf("expected ttl refresh, got %v", client.ttls["vt:cart:sess"])
	}

	if err := store.Remove(ctx, "sess", LineKey{ProductID: "p1"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Clear(ctx, "sess"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := client.hashes["vt:cart:sess"]; ok {
		t.Fatalf("expected cart cleared")
	}
}

type fakeHashClient struct {
	hashes map[string]map[string]string
	ttls   map[string]time.Duration
}

func newFakeHashClient() *fakeHashClient {
	return &fakeHashClient{hashes: map[string]map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeHashClient) CartKey(sessionID string) string { return "vt:cart:" + sessionID }

func (f *fakeHashClient) HSet(_ context.Context, key, field string, value any) error {
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	f.hashes[key][field] = toString(value)
	return nil
}

func (f *fakeHashClient) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeHashClient) HDel(_ context.Context, key string, fields ...string) error {
	for _, field := range fields {
		delete(f.hashes[key], field)
	}
	return nil
}

func (f *fakeHashClient) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

func (f *fakeHashClient) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.hashes, key)
	}
	return nil
}

func toString(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return ""
	}
}

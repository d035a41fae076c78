package cart

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

const fieldSeparator = "|"

// LineKey addresses one cart line.
type LineKey struct {
	ProductID string `json:"product_id" validate:"required"`
	Variant   string `json:"variant,omitempty"`
}

func (k LineKey) field() string {
	return k.ProductID + fieldSeparator + k.Variant
}

func parseField(field string) LineKey {
	product, variant, _ := strings.Cut(field, fieldSeparator)
	return LineKey{ProductID: product, Variant: variant}
}

// Line is a committed cart line.
type Line struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant,omitempty"`
	Quantity  int    `json:"quantity"`
}

func (l Line) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Variant: l.Variant}
}

// Store persists cart lines per session.
type Store interface {
	Lines(ctx context.Context, sessionID string) ([]Line, error)
	SetQuantity(ctx context.Context, sessionID string, key LineKey, quantity int) error
	Remove(ctx context.Context, sessionID string, key LineKey) error
	Clear(ctx context.Context, sessionID string) error
}

type hashClient interface {
	CartKey(sessionID string) string
	HSet(ctx context.Context, key, field string, value any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisStore keeps each cart in one hash whose fields are product|variant and
// whose values are quantities. Every write refreshes the hash TTL.
type RedisStore struct {
	client hashClient
	ttl    time.Duration
}

func NewRedisStore(client hashClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Lines(ctx context.Context, sessionID string) ([]Line, error) {
	values, err := s.client.HGetAll(ctx, s.client.CartKey(sessionID))
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(values))
	for field, raw := range values {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			continue
		}
		key := parseField(field)
		lines = append(lines, Line{ProductID: key.ProductID, Variant: key.Variant, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Key().field() < lines[j].Key().field()
	})
	return lines, nil
}

func (s *RedisStore) SetQuantity(ctx context.Context, sessionID string, key LineKey, quantity int) error {
	cartKey := s.client.CartKey(sessionID)
	if err := s.client.HSet(ctx, cartKey, key.field(), quantity); err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.client.Expire(ctx, cartKey, s.ttl)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, sessionID string, key LineKey) error {
	return s.client.HDel(ctx, s.client.CartKey(sessionID), key.field())
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.client.CartKey(sessionID))
}

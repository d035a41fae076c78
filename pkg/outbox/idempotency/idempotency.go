// Package idempotency remembers which outbox events a consumer has already
// delivered, so redelivery after a crash does not notify twice.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/redis"
)

const deliveredScope = "delivered"

// Ledger is scoped to one consumer. Markers live under
// vt:idempotency:delivered:<consumer>:<event_id>.
type Ledger struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
}

func NewLedger(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("idempotency: store required")
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, errors.New("idempotency: consumer name required")
	}
	if ttl <= 0 {
		return nil, errors.New("idempotency: ttl must be positive")
	}
	return &Ledger{store: store, consumer: consumer, ttl: ttl}, nil
}

// Begin claims eventID for delivery. It reports false when the event was
// already claimed, in which case the caller must skip it.
func (l *Ledger) Begin(ctx context.Context, eventID string) (bool, error) {
	key, err := l.key(eventID)
	if err != nil {
		return false, err
	}
	return l.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl)
}

// Abort drops the claim after a failed delivery so a retry sends again.
func (l *Ledger) Abort(ctx context.Context, eventID string) error {
	key, err := l.key(eventID)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}

func (l *Ledger) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("idempotency: event id required")
	}
	return l.store.IdempotencyKey(deliveredScope+":"+l.consumer, eventID), nil
}

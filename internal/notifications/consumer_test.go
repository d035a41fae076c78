package notifications

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/idempotency"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/registry"
	"github.com/vitrine-commerce/vitrine-backend/pkg/telegram"
)

type stubSender struct {
	calls []string
	err   error
}

func (s *stubSender) SendMessage(_ context.Context, text, parseMode string) error {
	s.calls = append(s.calls, parseMode+"|"+text)
	return s.err
}

type memoryStore struct {
	keys map[string]struct{}
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, _ any, _ time.Duration) error {
	m.keys[key] = struct{}{}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func newConsumer(t *testing.T, s *stubSender) (*TelegramConsumer, *memoryStore) {
	t.Helper()
	store := &memoryStore{keys: map[string]struct{}{}}
	ledger, err := idempotency.NewLedger(store, "telegram-notifications", time.Hour)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	consumer, err := NewTelegramConsumer(s, ledger, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return consumer, store
}

func orderCreated(eventID string) *registry.ResolvedEvent {
	order := sampleOrder()
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: enums.EventOrderCreated, Channel: registry.ChannelTelegram},
		Envelope:   outbox.PayloadEnvelope{EventID: eventID},
		Payload:    &order,
	}
}

func TestHandleSendsOncePerEvent(t *testing.T) {
	s := &stubSender{}
	consumer, _ := newConsumer(t, s)
	ctx := context.Background()

	if err := consumer.Handle(ctx, orderCreated("evt-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := consumer.Handle(ctx, orderCreated("evt-1")); err != nil {
		t.Fatalf("handle duplicate: %v", err)
	}
	if len(s.calls) != 1 {
		t.Fatalf("expected one message, got %d", len(s.calls))
	}
	if s.calls[0][:len(telegram.ParseModeMarkdown)] != telegram.ParseModeMarkdown {
		t.Fatalf("expected markdown parse mode, got %q", s.calls[0])
	}
}

func TestHandleTransientFailureAllowsRetry(t *testing.T) {
	s := &stubSender{err: pkgerrors.Wrap(pkgerrors.CodeDependency, &telegram.APIError{StatusCode: 502}, "telegram send failed")}
	consumer, store := newConsumer(t, s)

	err := consumer.Handle(context.Background(), orderCreated("evt-2"))
	if err == nil {
		t.Fatal("expected error")
	}
	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if len(store.keys) != 0 {
		t.Fatalf("expected idempotency marker cleared, got %v", store.keys)
	}
}

func TestHandlePermanentFailureIsNonRetryable(t *testing.T) {
	s := &stubSender{err: pkgerrors.Wrap(pkgerrors.CodeDependency, &telegram.APIError{StatusCode: 400, Description: "can't parse entities"}, "telegram send failed")}
	consumer, _ := newConsumer(t, s)

	err := consumer.Handle(context.Background(), orderCreated("evt-3"))
	var nonRetryable registry.NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestHandleStatusChange(t *testing.T) {
	s := &stubSender{}
	consumer, _ := newConsumer(t, s)
	event := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: enums.EventOrderStatusChanged},
		Envelope:   outbox.PayloadEnvelope{EventID: "evt-4"},
		Payload:    &payloads.OrderStatusChangedEvent{OrderID: "VT-1", From: "Processamento", To: "Pago"},
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(s.calls) != 1 {
		t.Fatalf("expected one message, got %d", len(s.calls))
	}
}

func TestHandleUnknownPayload(t *testing.T) {
	consumer, _ := newConsumer(t, &stubSender{})
	event := &registry.ResolvedEvent{
		Envelope: outbox.PayloadEnvelope{EventID: "evt-5"},
		Payload:  &payloads.StockSyncedEvent{},
	}
	var nonRetryable registry.NonRetryableError
	if err := consumer.Handle(context.Background(), event); !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

// Package registry maps stored outbox rows to typed payloads and the channel
// that delivers them.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
)

const (
	ChannelTelegram = "telegram"
	ChannelAudit    = "audit"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Channel        string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a failure that retrying cannot fix, such as a
// malformed row or a chat the bot was removed from.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func storefrontEvents() []EventDescriptor {
	return []EventDescriptor{
		{enums.EventOrderCreated, enums.AggregateOrder, ChannelTelegram, func() any { return &payloads.OrderCreatedEvent{} }},
		{enums.EventOrderStatusChanged, enums.AggregateOrder, ChannelTelegram, func() any { return &payloads.OrderStatusChangedEvent{} }},
		{enums.EventStockSynced, enums.AggregateProduct, ChannelAudit, func() any { return &payloads.StockSyncedEvent{} }},
	}
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry() *EventRegistry {
	descs := storefrontEvents()
	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(descs))}
	for _, d := range descs {
		reg.byType[d.EventType] = d
	}
	return reg
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row will not decode differently later.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.describe(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	env, err := outbox.OpenEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

func (r *EventRegistry) describe(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("%s belongs to %s aggregates, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case strings.TrimSpace(event.AggregateID) == "":
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}

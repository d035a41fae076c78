package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/idempotency"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/registry"
	"github.com/vitrine-commerce/vitrine-backend/pkg/telegram"
)

type sender interface {
	SendMessage(ctx context.Context, text, parseMode string) error
}

// TelegramConsumer turns order events into chat messages for the shop owner.
type TelegramConsumer struct {
	sender sender
	ledger *idempotency.Ledger
	logg   *logger.Logger
}

// NewTelegramConsumer builds the consumer. A nil ledger disables duplicate
// suppression.
func NewTelegramConsumer(s sender, ledger *idempotency.Ledger, logg *logger.Logger) (*TelegramConsumer, error) {
	if s == nil {
		return nil, fmt.Errorf("telegram sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &TelegramConsumer{sender: s, ledger: ledger, logg: logg}, nil
}

// Handle delivers one resolved outbox event. Permanent Telegram rejections
// are returned as registry.NonRetryableError.
func (c *TelegramConsumer) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	if event == nil {
		return registry.NewNonRetryableError(errors.New("event required"))
	}
	eventID := event.Envelope.EventID
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   eventID,
		"event_type": event.Descriptor.EventType,
	})

	text, err := render(event.Payload)
	if err != nil {
		return registry.NewNonRetryableError(err)
	}

	if c.ledger != nil {
		fresh, err := c.ledger.Begin(ctx, eventID)
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if !fresh {
			c.logg.Info(logCtx, "event already delivered")
			return nil
		}
	}

	if err := c.sender.SendMessage(ctx, text, telegram.ParseModeMarkdown); err != nil {
		if c.ledger != nil {
			if delErr := c.ledger.Abort(ctx, eventID); delErr != nil {
				c.logg.Error(logCtx, "failed to clear idempotency marker", delErr)
			}
		}
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return registry.NewNonRetryableError(err)
		}
		return err
	}
	c.logg.Info(logCtx, "telegram notification sent")
	return nil
}

func render(payload any) (string, error) {
	switch p := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return FormatOrderMessage(*p), nil
	case *payloads.OrderStatusChangedEvent:
		return FormatStatusMessage(*p), nil
	default:
		return "", fmt.Errorf("no telegram template for %T", payload)
	}
}

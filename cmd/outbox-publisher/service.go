package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/metrics"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize       = 50
	defaultPollMs          = 500
	defaultDeliveryTimeout = 15 * time.Second
	defaultMaxAttempts     = 10
	maxBackoff             = 10 * time.Second
	jitterWindow           = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// eventHandler delivers a resolved event to one channel.
type eventHandler interface {
	Handle(ctx context.Context, event *registry.ResolvedEvent) error
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	// Handlers maps a registry channel to its delivery.
	Handlers map[string]eventHandler
	Metrics  *metrics.OutboxMetrics
}

type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	handlers     map[string]eventHandler
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}
	if len(params.Handlers) == 0 {
		return nil, errors.New("at least one channel handler is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		handlers:     params.Handlers,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	backoff := s.newBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait, _ = backoff.Next()
		case processed:
			backoff = s.newBackoff()
			continue
		default:
			backoff = s.newBackoff()
			wait = s.pollInterval + time.Duration(rand.Int64N(int64(jitterWindow)))
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// newBackoff doubles the wait after each failed batch, up to maxBackoff.
func (s *Service) newBackoff() retry.Backoff {
	b := retry.NewExponential(s.pollInterval)
	b = retry.WithCappedDuration(maxBackoff, b)
	return retry.WithJitter(jitterWindow, b)
}

// processBatch claims unpublished rows under one transaction and dispatches
// each. Only bookkeeping failures abort the batch; a failed delivery is
// recorded on its row.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.handleTerminal(ctx, tx, event, models.DLQReasonNonRetryable, err, "", nil)
	}

	channel := resolved.Descriptor.Channel
	fields := s.eventFields(event, resolved.Envelope, channel)
	deliverErr := s.deliver(ctx, resolved)

	var nonRetry registry.NonRetryableError
	switch {
	case deliverErr == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Observe(string(event.EventType), "published")
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event delivered")
		return nil

	case errors.As(deliverErr, &nonRetry):
		return s.handleTerminal(ctx, tx, event, models.DLQReasonNonRetryable, deliverErr, channel, fields)

	case event.AttemptCount+1 >= s.maxAttempts:
		fields["attempt_count"] = event.AttemptCount + 1
		terminalErr := fmt.Errorf("max delivery attempts reached: %w", deliverErr)
		return s.handleTerminal(ctx, tx, event, models.DLQReasonMaxAttempts, terminalErr, channel, fields)
	}

	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = deliverErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox delivery failed")
	s.metrics.Observe(string(event.EventType), "failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, deliverErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, resolved *registry.ResolvedEvent) error {
	handler, ok := s.handlers[resolved.Descriptor.Channel]
	if !ok || handler == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no handler for channel %q", resolved.Descriptor.Channel))
	}
	deliverCtx, cancel := context.WithTimeout(ctx, defaultDeliveryTimeout)
	defer cancel()
	return handler.Handle(deliverCtx, resolved)
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason string, err error, channel string, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{}, channel)
	}
	fields["error_reason"] = reason
	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")
	s.metrics.Observe(string(event.EventType), "terminal")

	message := err.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if insertErr := s.dlq.InsertTx(tx, entry); insertErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, insertErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, channel string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if channel != "" {
		fields["channel"] = channel
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// logHandler records events that only need an audit trail, and stands in for
// Telegram when no bot is configured.
type logHandler struct {
	logg *logger.Logger
	msg  string
}

func (h logHandler) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	h.logg.Info(h.logg.WithFields(ctx, map[string]any{
		"event_id":   event.Envelope.EventID,
		"event_type": event.Descriptor.EventType,
		"channel":    event.Descriptor.Channel,
	}), h.msg)
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitrine-commerce/vitrine-backend/internal/notifications"
	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/instance"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/metrics"
	"github.com/vitrine-commerce/vitrine-backend/pkg/migrate"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/idempotency"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/registry"
	"github.com/vitrine-commerce/vitrine-backend/pkg/redis"
	"github.com/vitrine-commerce/vitrine-backend/pkg/telegram"
)

const (
	telegramRetryBackoff = 500 * time.Millisecond
	deliveredMarkerTTL   = 7 * 24 * time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	handlers, err := buildHandlers(cfg, logg, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build channel handlers", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      registry.NewEventRegistry(),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Handlers:      handlers,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.ID(),
		"serviceKind": "outbox-publisher",
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// buildHandlers wires one handler per registry channel. Telegram events are
// only logged when no bot is configured so the outbox still drains.
func buildHandlers(cfg *config.Config, logg *logger.Logger, store redis.IdempotencyStore) (map[string]eventHandler, error) {
	handlers := map[string]eventHandler{
		registry.ChannelAudit: logHandler{logg: logg, msg: "audit event recorded"},
	}

	if !cfg.Telegram.Enabled() {
		logg.Warn(context.Background(), "telegram not configured, order notifications will only be logged")
		handlers[registry.ChannelTelegram] = logHandler{logg: logg, msg: "telegram disabled, notification skipped"}
		return handlers, nil
	}

	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		telegram.WithBaseURL(cfg.Telegram.BaseURL),
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.Telegram.Timeout}),
		telegram.WithRetry(cfg.Telegram.MaxRetries, telegramRetryBackoff),
		telegram.WithRateLimit(cfg.Telegram.RatePerMinute, cfg.Telegram.RateBurst),
	)
	if err != nil {
		return nil, err
	}
	ledger, err := idempotency.NewLedger(store, "telegram-notifications", deliveredMarkerTTL)
	if err != nil {
		return nil, err
	}
	consumer, err := notifications.NewTelegramConsumer(client, ledger, logg)
	if err != nil {
		return nil, err
	}
	handlers[registry.ChannelTelegram] = consumer
	return handlers, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitrine-commerce/vitrine-backend/internal/cron"
	"github.com/vitrine-commerce/vitrine-backend/internal/loyalty"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/instance"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/metrics"
	"github.com/vitrine-commerce/vitrine-backend/pkg/migrate"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), lockTTL(cfg.Cron.Interval))
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err == nil {
		registry, err = registry.Select(cfg.Cron.Jobs)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metricsCollector,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.ID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if *once {
		report, err := service.RunOnce(ctx)
		if err != nil || len(report.Failed) > 0 {
			logg.Error(logg.WithField(ctx, "failed_jobs", report.Failed), "cron cycle did not complete cleanly", err)
			os.Exit(1)
		}
		return
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron:" + env
}

// lockTTL keeps the lock shorter than one cycle so a crashed holder never
// blocks the next run.
func lockTTL(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return interval * 4 / 5
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	conn := dbClient.DB()

	reservations, err := reservation.NewService(dbClient, reservation.NewRepository(conn), reservation.Config{
		TTL: cfg.Reservation.TTL,
	}, nil, logg)
	if err != nil {
		return nil, err
	}
	loyaltySvc, err := loyalty.NewService(dbClient, loyalty.NewRepository(conn), loyalty.Config{
		Thresholds: loyalty.Thresholds{
			SilverCents: cfg.Loyalty.SilverThresholdCents,
			GoldCents:   cfg.Loyalty.GoldThresholdCents,
		},
		PointsPerUnit: cfg.Loyalty.PointsPerUnit,
	}, logg)
	if err != nil {
		return nil, err
	}

	sweep, err := cron.NewReservationSweepJob(cron.ReservationSweepJobParams{
		Logger: logg,
		Purger: reservations,
		Grace:  cfg.Reservation.SweepGrace,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Pruner:    outbox.NewRepository(conn),
		Retention: cfg.Cron.OutboxRetention,
		BatchSize: cfg.Cron.OutboxPruneBatch,
	})
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewLoyaltyReconcileJob(cron.LoyaltyReconcileJobParams{
		Logger:  logg,
		Loyalty: loyaltySvc,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{sweep, retention, reconcile}, nil
}

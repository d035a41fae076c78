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

	"github.com/vitrine-commerce/vitrine-backend/api/routes"
	"github.com/vitrine-commerce/vitrine-backend/internal/cart"
	"github.com/vitrine-commerce/vitrine-backend/internal/catalog"
	"github.com/vitrine-commerce/vitrine-backend/internal/checkout"
	"github.com/vitrine-commerce/vitrine-backend/internal/coupons"
	"github.com/vitrine-commerce/vitrine-backend/internal/inventory"
	"github.com/vitrine-commerce/vitrine-backend/internal/loyalty"
	"github.com/vitrine-commerce/vitrine-backend/internal/orders"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	"github.com/vitrine-commerce/vitrine-backend/internal/users"
	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/handoff"
	"github.com/vitrine-commerce/vitrine-backend/pkg/instance"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/metrics"
	"github.com/vitrine-commerce/vitrine-backend/pkg/migrate"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, prometheus.DefaultGatherer, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	conn := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	catalogRepo := catalog.NewRepository(conn)
	catalogSvc, err := catalog.NewService(dbClient, catalogRepo)
	if err != nil {
		return routes.Services{}, err
	}

	reservations, err := reservation.NewService(dbClient, reservation.NewRepository(conn), reservation.Config{
		TTL:            cfg.Reservation.TTL,
		DemoProductIDs: cfg.Reservation.DemoProductIDs,
		AllowDemo:      !cfg.App.IsProd(),
	}, metrics.NewReservationMetrics(prometheus.DefaultRegisterer), logg)
	if err != nil {
		return routes.Services{}, err
	}

	cartStore := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
	cartSvc, err := cart.NewService(cartStore, reservations, logg)
	if err != nil {
		return routes.Services{}, err
	}

	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	userSvc, err := users.NewService(users.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	loyaltySvc, err := loyalty.NewService(dbClient, loyalty.NewRepository(conn), loyalty.Config{
		Thresholds: loyalty.Thresholds{
			SilverCents: cfg.Loyalty.SilverThresholdCents,
			GoldCents:   cfg.Loyalty.GoldThresholdCents,
		},
		PointsPerUnit: cfg.Loyalty.PointsPerUnit,
	}, logg)
	if err != nil {
		return routes.Services{}, err
	}

	inventorySvc, err := inventory.NewService(dbClient, inventory.NewRepository(conn), events, logg)
	if err != nil {
		return routes.Services{}, err
	}

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orderRepo, dbClient, events, inventorySvc, reservations, logg)
	if err != nil {
		return routes.Services{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Tx:           dbClient,
		Cart:         cartStore,
		Products:     catalogRepo,
		Orders:       orderRepo,
		Coupons:      couponSvc,
		Reservations: reservations,
		Loyalty:      loyaltySvc,
		Handoff: handoff.Config{
			WhatsAppPhone:    cfg.Handoff.WhatsAppPhone,
			TelegramUsername: cfg.Handoff.TelegramUsername,
		},
		Outbox: events,
		Logger: logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Catalog:      catalogSvc,
		Cart:         cartSvc,
		Reservations: reservations,
		Coupons:      couponSvc,
		Checkout:     checkoutSvc,
		Users:        userSvc,
		Loyalty:      loyaltySvc,
		Orders:       orderSvc,
		Inventory:    inventorySvc,
		DeadLetters:  outbox.NewDLQRepository(conn),
	}, nil
}

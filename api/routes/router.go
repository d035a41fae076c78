package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitrine-commerce/vitrine-backend/api/controllers"
	"github.com/vitrine-commerce/vitrine-backend/api/middleware"
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
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/redis"
)

// Services are the domain services the HTTP surface exposes.
type Services struct {
	Catalog      *catalog.Service
	Cart         *cart.Service
	Reservations *reservation.Service
	Coupons      *coupons.Service
	Checkout     *checkout.Service
	Users        *users.Service
	Loyalty      *loyalty.Service
	Orders       orders.Service
	Inventory    *inventory.Service
	DeadLetters  *outbox.DLQRepository
}

type redisStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	reservePolicy := middleware.NewRateLimitPolicy("reserve", cfg.RateLimit.Window, cfg.RateLimit.ReserveLimit)
	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutLimit)
	reserveLimit := middleware.RateLimit(reservePolicy, redisClient, logg)
	checkoutLimit := middleware.RateLimit(checkoutPolicy, redisClient, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(logg))
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/products", controllers.ProductList(svc.Catalog, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(svc.Catalog, svc.Reservations, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(svc.Cart, logg))
			r.Delete("/", controllers.CartClear(svc.Cart, logg))
			r.Group(func(r chi.Router) {
				r.Use(reserveLimit)
				r.Post("/items", controllers.CartAdd(svc.Cart, logg))
				r.Post("/items/increment", controllers.CartIncrement(svc.Cart, logg))
				r.Post("/items/decrement", controllers.CartDecrement(svc.Cart, logg))
				r.Delete("/items", controllers.CartRemove(svc.Cart, logg))
			})
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ReservationList(svc.Reservations, logg))
			r.With(reserveLimit).Post("/", controllers.ReservationSet(svc.Reservations, logg))
		})

		r.Post("/coupons/validate", controllers.CouponValidate(svc.Coupons, logg))
		r.With(checkoutLimit).Post("/checkout", controllers.Checkout(svc.Checkout, logg))
		r.Get("/orders/{orderId}", controllers.OrderDetail(svc.Orders, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWT, logg))
			r.Post("/session/start", controllers.SessionStart(svc.Users, svc.Loyalty, logg))
			r.Get("/me", controllers.ProfileGet(svc.Users, logg))
			r.Patch("/me", controllers.ProfileUpdate(svc.Users, logg))
			r.Get("/orders", controllers.OrderList(svc.Orders, logg))
			r.Get("/loyalty/history", controllers.LoyaltyHistory(svc.Loyalty, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminProductList(svc.Catalog, logg))
			r.Post("/", controllers.AdminProductCreate(svc.Catalog, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(svc.Catalog, logg))
		})
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.AdminBatchList(svc.Inventory, logg))
			r.Post("/", controllers.AdminBatchCreate(svc.Inventory, logg))
			r.Get("/summary", controllers.AdminInventorySummary(svc.Inventory, logg))
			r.Patch("/{batchId}", controllers.AdminBatchUpdate(svc.Inventory, logg))
			r.Post("/sync/{productId}", controllers.AdminInventorySync(svc.Inventory, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(svc.Orders, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(svc.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(svc.Orders, logg))
			r.Patch("/{orderId}/tracking", controllers.AdminOrderSetTracking(svc.Orders, logg))
		})
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.AdminCouponList(svc.Coupons, logg))
			r.Post("/", controllers.AdminCouponCreate(svc.Coupons, logg))
			r.Patch("/{code}", controllers.AdminCouponSetActive(svc.Coupons, logg))
		})
		r.Route("/outbox/dead-letters", func(r chi.Router) {
			r.Get("/", controllers.AdminDeadLetterList(svc.DeadLetters, logg))
			r.Post("/{eventId}/requeue", controllers.AdminDeadLetterRequeue(svc.DeadLetters, logg))
		})
	})

	return r
}

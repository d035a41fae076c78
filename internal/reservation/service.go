package reservation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/metrics"
)

const DefaultTTL = 15 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Config tunes reservation behaviour.
type Config struct {
	TTL time.Duration
	// DemoProductIDs may be reserved without a product row when AllowDemo is set.
	DemoProductIDs []string
	AllowDemo      bool
}

// ReserveInput sets the actor's hold on a product variant to Quantity.
// Quantity <= 0 releases the hold.
type ReserveInput struct {
	ProductID   string
	VariantName string
	Quantity    int
	Actor       Actor
}

// Result describes the hold after Reserve.
type Result struct {
	ReservationID string
	ProductID     string
	VariantName   string
	Quantity      int
	ExpiresAt     *time.Time
	Released      bool
	Bypassed      bool
}

// Availability is the stock one actor can still claim.
type Availability struct {
	Stock            int  `json:"stock"`
	ReservedByOthers int  `json:"reserved_by_others"`
	ReservedByMe     int  `json:"reserved_by_me"`
	Available        int  `json:"available"`
	Unlimited        bool `json:"unlimited,omitempty"`
}

type Service struct {
	tx      txRunner
	repo    *Repository
	cfg     Config
	demo    map[string]struct{}
	metrics *metrics.ReservationMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(tx txRunner, repo *Repository, cfg Config, m *metrics.ReservationMetrics, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	demo := make(map[string]struct{}, len(cfg.DemoProductIDs))
	for _, id := range cfg.DemoProductIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			demo[trimmed] = struct{}{}
		}
	}
	return &Service{
		tx:      tx,
		repo:    repo,
		cfg:     cfg,
		demo:    demo,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) isDemo(productID string) bool {
	if !s.cfg.AllowDemo {
		return false
	}
	_, ok := s.demo[productID]
	return ok
}

// Reserve sets the actor's hold on a product variant. All reads and the write
// happen in one transaction that first locks the product row, so concurrent
// reservers of the same product cannot oversubscribe its stock.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (*Result, error) {
	actor := input.Actor.normalized()
	if err := actor.validate(); err != nil {
		return nil, err
	}
	rawID := strings.TrimSpace(input.ProductID)
	variant := strings.TrimSpace(input.VariantName)

	if s.isDemo(rawID) {
		s.metrics.Observe(metrics.ReservationDemoBypass)
		return &Result{ProductID: rawID, VariantName: variant, Quantity: max(input.Quantity, 0), Bypassed: true}, nil
	}
	productID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		res, err := s.reserveLocked(ctx, repo, actor, productID, variant, input.Quantity)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	s.observe(result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) reserveLocked(ctx context.Context, repo *Repository, actor Actor, productID uuid.UUID, variant string, quantity int) (*Result, error) {
	found, err := repo.BumpVersion(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock product")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	snapshot, err := s.snapshot(ctx, repo, actor, productID, variant)
	if err != nil {
		return nil, err
	}

	result := &Result{ProductID: productID.String(), VariantName: variant}

	if quantity <= 0 {
		if _, err := repo.DeleteByIDs(ctx, snapshot.mineIDs); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release reservation")
		}
		result.Released = true
		return result, nil
	}

	available := snapshot.availability.Available
	if quantity > available {
		return nil, stockError(available)
	}

	id := ReservationID(actor, productID, variant)
	stale := make([]string, 0, len(snapshot.mineIDs))
	for _, mineID := range snapshot.mineIDs {
		if mineID != id {
			stale = append(stale, mineID)
		}
	}
	if _, err := repo.DeleteByIDs(ctx, stale); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop duplicate reservations")
	}

	expiresAt := s.now().Add(s.cfg.TTL)
	row := &models.StockReservation{
		ID:          id,
		ProductID:   productID,
		VariantName: variant,
		Quantity:    quantity,
		SessionID:   actor.SessionID,
		ExpiresAt:   expiresAt,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		row.UserID = &userID
	}
	if err := repo.Upsert(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write reservation")
	}

	result.ReservationID = id
	result.Quantity = quantity
	result.ExpiresAt = &expiresAt
	return result, nil
}

type snapshot struct {
	availability Availability
	// mineIDs includes the actor's expired holds so they are cleaned up on write.
	mineIDs []string
}

func (s *Service) snapshot(ctx context.Context, repo *Repository, actor Actor, productID uuid.UUID, variant string) (*snapshot, error) {
	product, err := repo.FindProduct(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	stock := product.Stock
	if variant != "" {
		v, ok := product.Variant(variant)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"variant": variant})
		}
		stock = v.Stock
	}

	rows, err := repo.ListForProductVariant(ctx, productID, variant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservations")
	}

	now := s.now()
	snap := &snapshot{availability: Availability{Stock: stock}}
	for _, row := range rows {
		mine := isMine(row, actor)
		if mine {
			snap.mineIDs = append(snap.mineIDs, row.ID)
		}
		if !row.ActiveAt(now) {
			continue
		}
		if mine {
			snap.availability.ReservedByMe += row.Quantity
		} else {
			snap.availability.ReservedByOthers += row.Quantity
		}
	}
	snap.availability.Available = stock - snap.availability.ReservedByOthers
	return snap, nil
}

// isMine reports whether row is one of the actor's cart holds. Allocations
// always count as someone else's.
func isMine(row models.StockReservation, actor Actor) bool {
	if row.IsAllocation() {
		return false
	}
	if actor.SessionID != "" {
		return row.SessionID == actor.SessionID
	}
	return row.UserID != nil && *row.UserID == actor.UserID
}

func lineStockError(productID uuid.UUID, variant string, available int) error {
	return stockError(available).WithDetails(map[string]any{
		"available":  max(available, 0),
		"product_id": productID.String(),
		"variant":    variant,
	})
}

func stockError(available int) *pkgerrors.Error {
	if available <= 0 {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "out of stock").
			WithDetails(map[string]any{"available": 0})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d units available", available)).
		WithDetails(map[string]any{"available": available})
}

func (s *Service) observe(result *Result, err error) {
	switch {
	case err == nil && result != nil && result.Released:
		s.metrics.Observe(metrics.ReservationReleased)
	case err == nil:
		s.metrics.Observe(metrics.ReservationReserved)
	case pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock):
		s.metrics.Observe(metrics.ReservationOutOfStock)
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		s.metrics.Observe(metrics.ReservationInsufficient)
	default:
		s.metrics.Observe(metrics.ReservationError)
	}
}

// Available reports what the actor can still claim without writing anything.
func (s *Service) Available(ctx context.Context, productID, variant string, actor Actor) (*Availability, error) {
	actor = actor.normalized()
	rawID := strings.TrimSpace(productID)
	if s.isDemo(rawID) {
		return &Availability{Unlimited: true}, nil
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	snap, err := s.snapshot(ctx, s.repo, actor, id, strings.TrimSpace(variant))
	if err != nil {
		return nil, err
	}
	avail := snap.availability
	if avail.Available < 0 {
		avail.Available = 0
	}
	return &avail, nil
}

// ListActive returns the actor's unexpired holds.
func (s *Service) ListActive(ctx context.Context, actor Actor) ([]models.StockReservation, error) {
	actor = actor.normalized()
	if err := actor.validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForActor(ctx, actor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reservations")
	}
	now := s.now()
	active := make([]models.StockReservation, 0, len(rows))
	for _, row := range rows {
		if row.ActiveAt(now) {
			active = append(active, row)
		}
	}
	return active, nil
}

// ReleaseForActor drops every cart hold of the actor. A nil tx runs on the
// service's own connection.
func (s *Service) ReleaseForActor(ctx context.Context, tx *gorm.DB, actor Actor) (int64, error) {
	actor = actor.normalized()
	if err := actor.validate(); err != nil {
		return 0, err
	}
	n, err := s.repo.WithTx(tx).DeleteForActor(ctx, actor)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release reservations")
	}
	if n > 0 && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"session_id": actor.SessionID, "released": n})
		s.logg.Info(logCtx, "reservations released")
	}
	return n, nil
}

// OrderLine is a quantity of a product variant claimed by an order.
type OrderLine struct {
	ProductID string
	Variant   string
	Quantity  int
}

// CommitForOrder claims every line for orderID inside tx. Each product is
// locked and its stock re-checked against everyone else's holds and
// allocations, so a lapsed hold only goes through while stock allows. The
// actor's cart holds are replaced by allocations that keep counting against
// stock until ReleaseOrder.
func (s *Service) CommitForOrder(ctx context.Context, tx *gorm.DB, actor Actor, orderID string, lines []OrderLine) error {
	actor = actor.normalized()
	if err := actor.validate(); err != nil {
		return err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	wanted := map[LineKey]int{}
	for _, line := range lines {
		rawID := strings.TrimSpace(line.ProductID)
		if line.Quantity <= 0 || s.isDemo(rawID) {
			continue
		}
		productID, err := uuid.Parse(rawID)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": rawID})
		}
		wanted[LineKey{ProductID: productID, Variant: strings.TrimSpace(line.Variant)}] += line.Quantity
	}
	keys := make([]LineKey, 0, len(wanted))
	for k := range wanted {
		keys = append(keys, k)
	}
	// Products are locked in id order so concurrent checkouts cannot deadlock.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID.String() < keys[j].ProductID.String()
		}
		return keys[i].Variant < keys[j].Variant
	})

	locked := map[uuid.UUID]struct{}{}
	now := s.now()
	for _, key := range keys {
		if _, ok := locked[key.ProductID]; !ok {
			found, err := repo.BumpVersion(ctx, key.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock product")
			}
			if !found {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": key.ProductID.String()})
			}
			locked[key.ProductID] = struct{}{}
		}
		snap, err := s.snapshot(ctx, repo, actor, key.ProductID, key.Variant)
		if err != nil {
			return err
		}
		quantity := wanted[key]
		if quantity > snap.availability.Available {
			err := lineStockError(key.ProductID, key.Variant, snap.availability.Available)
			s.observe(nil, err)
			return err
		}
		if _, err := repo.DeleteByIDs(ctx, snap.mineIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop cart holds")
		}
		id := orderID
		row := &models.StockReservation{
			ID:          AllocationID(orderID, key.ProductID, key.Variant),
			ProductID:   key.ProductID,
			VariantName: key.Variant,
			Quantity:    quantity,
			SessionID:   actor.SessionID,
			OrderID:     &id,
			ExpiresAt:   now,
		}
		if actor.UserID != "" {
			userID := actor.UserID
			row.UserID = &userID
		}
		if err := repo.Upsert(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write order allocation")
		}
	}

	if _, err := repo.DeleteForActor(ctx, actor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release reservations")
	}
	return nil
}

// ReleaseOrder drops the order's allocations inside tx: the lines in keys,
// or all of them when keys is empty.
func (s *Service) ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID string, keys ...LineKey) (int64, error) {
	n, err := s.repo.WithTx(tx).DeleteForOrder(ctx, strings.TrimSpace(orderID), keys)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release order allocations")
	}
	return n, nil
}

// PurgeExpired deletes cart holds that expired before the cutoff.
func (s *Service) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repo.DeleteExpiredBefore(ctx, before.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purge expired reservations")
	}
	s.metrics.AddPurged(n)
	return n, nil
}

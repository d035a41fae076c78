package inventory

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
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type CreateBatchInput struct {
	PublicProductID      *string              `json:"public_product_id,omitempty" validate:"omitempty,uuid"`
	Variant              string               `json:"variant,omitempty" validate:"max=60"`
	Name                 string               `json:"name" validate:"required,max=200"`
	QuantityBought       int                  `json:"quantity_bought" validate:"gte=0"`
	PurchasePriceCents   int64                `json:"purchase_price_cents" validate:"gte=0"`
	TargetSalePriceCents int64                `json:"target_sale_price_cents" validate:"gte=0"`
	SupplierName         string               `json:"supplier_name,omitempty" validate:"max=200"`
	SupplierContact      *string              `json:"supplier_contact,omitempty"`
	CashbackStatus       enums.CashbackStatus `json:"cashback_status,omitempty"`
	CashbackCents        int64                `json:"cashback_cents" validate:"gte=0"`
	Notes                *string              `json:"notes,omitempty"`
	PurchasedAt          *time.Time           `json:"purchased_at,omitempty"`
}

// UpdateBatchInput patches a batch. Lowering QuantityBought below what was
// already sold requires AllowOversold.
type UpdateBatchInput struct {
	Name                 *string               `json:"name,omitempty" validate:"omitempty,max=200"`
	QuantityBought       *int                  `json:"quantity_bought,omitempty" validate:"omitempty,gte=0"`
	PurchasePriceCents   *int64                `json:"purchase_price_cents,omitempty" validate:"omitempty,gte=0"`
	TargetSalePriceCents *int64                `json:"target_sale_price_cents,omitempty" validate:"omitempty,gte=0"`
	SupplierName         *string               `json:"supplier_name,omitempty" validate:"omitempty,max=200"`
	SupplierContact      *string               `json:"supplier_contact,omitempty"`
	CashbackStatus       *enums.CashbackStatus `json:"cashback_status,omitempty"`
	CashbackCents        *int64                `json:"cashback_cents,omitempty" validate:"omitempty,gte=0"`
	Notes                *string               `json:"notes,omitempty"`
	PurchasedAt          *time.Time            `json:"purchased_at,omitempty"`
	AllowOversold        bool                  `json:"allow_oversold,omitempty"`
}

// DeductInput charges Quantity units of a product variant against its batches.
type DeductInput struct {
	ProductID      uuid.UUID
	Variant        string
	Quantity       int
	OrderID        string
	UnitPriceCents int64
	// AllowOversell charges units beyond the remaining stock to the newest batch.
	AllowOversell bool
}

type Service struct {
	tx     txRunner
	repo   *Repository
	events eventEmitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(tx txRunner, repo *Repository, events eventEmitter, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &Service{
		tx:     tx,
		repo:   repo,
		events: events,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (*BatchDTO, error) {
	status := input.CashbackStatus
	if status == "" {
		status = enums.CashbackNone
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cashback status")
	}
	batch := &models.InventoryBatch{
		Variant:              strings.TrimSpace(input.Variant),
		Name:                 strings.TrimSpace(input.Name),
		QuantityBought:       input.QuantityBought,
		PurchasePriceCents:   input.PurchasePriceCents,
		TargetSalePriceCents: input.TargetSalePriceCents,
		SupplierName:         strings.TrimSpace(input.SupplierName),
		SupplierContact:      input.SupplierContact,
		CashbackStatus:       status,
		CashbackCents:        input.CashbackCents,
		Notes:                input.Notes,
		PurchasedAt:          s.now(),
	}
	if input.PurchasedAt != nil {
		batch.PurchasedAt = input.PurchasedAt.UTC()
	}
	if input.PublicProductID != nil && strings.TrimSpace(*input.PublicProductID) != "" {
		productID, err := uuid.Parse(strings.TrimSpace(*input.PublicProductID))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid public product id")
		}
		batch.PublicProductID = &productID
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if batch.PublicProductID != nil {
			product, err := repo.FindProduct(ctx, *batch.PublicProductID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if batch.Variant != "" {
				if _, ok := product.Variant(batch.Variant); !ok {
					return pkgerrors.New(pkgerrors.CodeValidation, "unknown variant for product").
						WithDetails(map[string]any{"variant": batch.Variant})
				}
			}
		}
		if err := repo.Create(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create batch")
		}
		if batch.PublicProductID != nil {
			if _, err := s.SyncPublicStock(ctx, tx, *batch.PublicProductID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewBatchDTO(*batch)
	return &dto, nil
}

func (s *Service) UpdateBatch(ctx context.Context, id uuid.UUID, input UpdateBatchInput) (*BatchDTO, error) {
	if input.CashbackStatus != nil && !input.CashbackStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cashback status")
	}
	var out models.InventoryBatch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		batch, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch")
		}
		if input.QuantityBought != nil && *input.QuantityBought < batch.QuantitySold && !input.AllowOversold {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity bought cannot drop below quantity sold").
				WithDetails(map[string]any{"quantity_sold": batch.QuantitySold})
		}

		updates := map[string]any{}
		if input.Name != nil {
			updates["name"] = strings.TrimSpace(*input.Name)
		}
		if input.QuantityBought != nil {
			updates["quantity_bought"] = *input.QuantityBought
		}
		if input.PurchasePriceCents != nil {
			updates["purchase_price_cents"] = *input.PurchasePriceCents
		}
		if input.TargetSalePriceCents != nil {
			updates["target_sale_price_cents"] = *input.TargetSalePriceCents
		}
		if input.SupplierName != nil {
			updates["supplier_name"] = strings.TrimSpace(*input.SupplierName)
		}
		if input.SupplierContact != nil {
			updates["supplier_contact"] = *input.SupplierContact
		}
		if input.CashbackStatus != nil {
			updates["cashback_status"] = *input.CashbackStatus
		}
		if input.CashbackCents != nil {
			updates["cashback_cents"] = *input.CashbackCents
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		if input.PurchasedAt != nil {
			updates["purchased_at"] = input.PurchasedAt.UTC()
		}
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update batch")
			}
		}
		if batch.PublicProductID != nil && input.QuantityBought != nil {
			if _, err := s.SyncPublicStock(ctx, tx, *batch.PublicProductID); err != nil {
				return err
			}
		}
		fresh, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload batch")
		}
		out = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewBatchDTO(out)
	return &dto, nil
}

// ListBatches lists a product's batches oldest first, or every batch when
// productID is empty.
func (s *Service) ListBatches(ctx context.Context, productID string) ([]BatchDTO, error) {
	filter, err := optionalProductID(productID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batches")
	}
	out := make([]BatchDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewBatchDTO(row))
	}
	return out, nil
}

func (s *Service) Summary(ctx context.Context, productID string) (*Summary, error) {
	filter, err := optionalProductID(productID)
	if err != nil {
		return nil, err
	}
	batches, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batches")
	}
	ids := make([]uuid.UUID, 0, len(batches))
	for _, b := range batches {
		ids = append(ids, b.ID)
	}
	sales, err := s.repo.SalesForBatches(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	summary := summarize(batches, sales)
	if filter != nil {
		summary.ProductID = filter.String()
	}
	return &summary, nil
}

// Deduct consumes stock oldest batch first and records one sale per batch
// touched. It must run inside the caller's transaction.
func (s *Service) Deduct(ctx context.Context, tx *gorm.DB, input DeductInput) ([]Allocation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)
	batches, err := repo.LockFIFO(ctx, input.ProductID, input.Variant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock batches")
	}
	if len(batches) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no inventory batches for product").
			WithDetails(map[string]any{"product_id": input.ProductID.String(), "variant": input.Variant})
	}

	total := 0
	for _, b := range batches {
		if rem := b.Remaining(); rem > 0 {
			total += rem
		}
	}
	if input.Quantity > total && !input.AllowOversell {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d units in inventory", total)).
			WithDetails(map[string]any{"available": total})
	}

	now := s.now()
	var orderID *string
	if input.OrderID != "" {
		id := input.OrderID
		orderID = &id
	}
	charge := func(b models.InventoryBatch, qty int, oversold bool) error {
		if err := repo.AddSold(ctx, b.ID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update batch sold")
		}
		sale := &models.InventorySale{
			BatchID:        b.ID,
			OrderID:        orderID,
			Quantity:       qty,
			UnitPriceCents: input.UnitPriceCents,
			Oversold:       oversold,
			SoldAt:         now,
		}
		if err := repo.InsertSale(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert sale")
		}
		return nil
	}

	left := input.Quantity
	allocations := []Allocation{}
	for _, b := range batches {
		if left == 0 {
			break
		}
		rem := b.Remaining()
		if rem <= 0 {
			continue
		}
		take := rem
		if left < take {
			take = left
		}
		if err := charge(b, take, false); err != nil {
			return nil, err
		}
		allocations = append(allocations, Allocation{BatchID: b.ID.String(), Quantity: take})
		left -= take
	}
	if left > 0 {
		newest := batches[len(batches)-1]
		if err := charge(newest, left, true); err != nil {
			return nil, err
		}
		allocations = append(allocations, Allocation{BatchID: newest.ID.String(), Quantity: left, Oversold: true})
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id": input.ProductID.String(),
				"variant":    input.Variant,
				"order_id":   input.OrderID,
				"oversold":   left,
			})
			s.logg.Warn(logCtx, "inventory oversold")
		}
	}
	return allocations, nil
}

// ReverseOrder returns the units of every open sale of the order to their
// batches and resyncs the affected products. It reports the units restored.
func (s *Service) ReverseOrder(ctx context.Context, tx *gorm.DB, orderID string) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	sales, err := repo.OpenSalesForOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order sales")
	}
	if len(sales) == 0 {
		return 0, nil
	}
	now := s.now()
	restored := 0
	batchIDs := make([]uuid.UUID, 0, len(sales))
	for _, sale := range sales {
		if err := repo.AddSold(ctx, sale.BatchID, -sale.Quantity); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore batch")
		}
		if err := repo.MarkSaleReversed(ctx, sale.ID, now); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse sale")
		}
		restored += sale.Quantity
		batchIDs = append(batchIDs, sale.BatchID)
	}

	batches, err := repo.FindMany(ctx, batchIDs)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batches")
	}
	products := map[uuid.UUID]struct{}{}
	for _, b := range batches {
		if b.PublicProductID != nil {
			products[*b.PublicProductID] = struct{}{}
		}
	}
	for _, productID := range sortedIDs(products) {
		if _, err := s.SyncPublicStock(ctx, tx, productID); err != nil {
			return 0, err
		}
	}
	return restored, nil
}

// SyncPublicStock writes batch remainders to the public catalog. Variant
// stock is the remainder of that variant's batches; products with variants
// report their sum, others report the remainder of unlabelled batches.
func (s *Service) SyncPublicStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*StockSnapshot, error) {
	run := func(tx *gorm.DB) (*StockSnapshot, error) {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		batches, err := repo.List(ctx, &productID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batches")
		}
		remaining := map[string]int{}
		for _, b := range batches {
			remaining[b.Variant] += b.Remaining()
		}

		snapshot := &StockSnapshot{ProductID: productID.String()}
		if len(product.Variants) > 0 {
			snapshot.Variants = make(map[string]int, len(product.Variants))
			for _, v := range product.Variants {
				stock := clamp(remaining[v.Name])
				if err := repo.SetVariantStock(ctx, v.ID, stock); err != nil {
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write variant stock")
				}
				snapshot.Variants[v.Name] = stock
				snapshot.Stock += stock
			}
		} else {
			snapshot.Stock = clamp(remaining[""])
		}
		if err := repo.SetProductStock(ctx, productID, snapshot.Stock); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write product stock")
		}
		if s.events != nil {
			err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockSynced,
				AggregateType: enums.AggregateProduct,
				AggregateID:   productID.String(),
				Data: payloads.StockSyncedEvent{
					ProductID: snapshot.ProductID,
					Stock:     snapshot.Stock,
					Variants:  snapshot.Variants,
				},
			})
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock synced")
			}
		}
		return snapshot, nil
	}

	if tx != nil {
		return run(tx)
	}
	var snapshot *StockSnapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		snapshot, err = run(tx)
		return err
	})
	return snapshot, err
}

func optionalProductID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}
	return &id, nil
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/internal/inventory"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
	"github.com/vitrine-commerce/vitrine-backend/pkg/pagination"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// UpdateStatusInput moves an order to Status. AllowOversell lets the stock
// deduction go past what the batches hold.
type UpdateStatusInput struct {
	OrderID       string
	Status        enums.OrderStatus
	AllowOversell bool
	ActorUserID   string
}

type SetTrackingInput struct {
	OrderID        string
	TrackingNumber string
	ActorUserID    string
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	inventory   InventoryLedger
	allocations StockAllocations
	logg        *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, inventory InventoryLedger, allocations StockAllocations, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if allocations == nil {
		return nil, fmt.Errorf("stock allocations required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      outbox,
		inventory:   inventory,
		allocations: allocations,
		logg:        logg,
	}, nil
}

func (s *service) Get(ctx context.Context, id string, viewer Viewer) (*OrderDTO, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !viewer.owns(*order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) ListForUser(ctx context.Context, userID string, params pagination.Params) (*OrderList, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toList(rows, params.Limit), nil
}

func (s *service) ListAll(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListAll(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toList(rows, params.Limit), nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var out models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Status {
			out = *order
			return nil
		}
		if err := validateTransition(order.Status, input.Status); err != nil {
			return err
		}

		from := order.Status
		updates := map[string]any{"status": input.Status}
		deducted, restocked := false, false
		switch {
		case input.Status.ConsumesStock() && !order.StockDeducted:
			charged, err := s.deductOrder(ctx, tx, *order, input.AllowOversell)
			if err != nil {
				return err
			}
			if len(charged) > 0 {
				if _, err := s.allocations.ReleaseOrder(ctx, tx, order.ID, charged...); err != nil {
					return err
				}
			}
			updates["stock_deducted"] = true
			order.StockDeducted = true
			deducted = true
		case input.Status == enums.OrderStatusCanceled && order.StockDeducted:
			if _, err := s.inventory.ReverseOrder(ctx, tx, order.ID); err != nil {
				return err
			}
			updates["stock_deducted"] = false
			order.StockDeducted = false
			restocked = true
		}
		// Lines never charged to a batch stay claimed until the order closes.
		if input.Status.IsTerminal() {
			if _, err := s.allocations.ReleaseOrder(ctx, tx, order.ID); err != nil {
				return err
			}
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = input.Status

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorUserID),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				From:           from.String(),
				To:             input.Status.String(),
				TrackingNumber: deref(order.TrackingNumber),
				StockDeducted:  deducted,
				StockRestocked: restocked,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
		}
		out = *order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(out)
	return &dto, nil
}

func (s *service) SetTracking(ctx context.Context, input SetTrackingInput) (*OrderDTO, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var out models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusCanceled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot be tracked")
		}
		var tracking *string
		if trimmed := strings.TrimSpace(input.TrackingNumber); trimmed != "" {
			tracking = &trimmed
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"tracking_number": tracking}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking")
		}
		order.TrackingNumber = tracking
		out = *order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(out)
	return &dto, nil
}

// deductOrder charges every structured line to inventory and returns the
// lines it charged. Legacy lines and products without batches are not
// tracked and are skipped.
func (s *service) deductOrder(ctx context.Context, tx *gorm.DB, order models.Order, allowOversell bool) ([]reservation.LineKey, error) {
	touched := map[uuid.UUID]struct{}{}
	var charged []reservation.LineKey
	for _, item := range order.Items.Structured() {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			s.warnSkipped(ctx, order.ID, item, "invalid product id")
			continue
		}
		_, err = s.inventory.Deduct(ctx, tx, inventory.DeductInput{
			ProductID:      productID,
			Variant:        item.Variant,
			Quantity:       item.Quantity,
			OrderID:        order.ID,
			UnitPriceCents: item.UnitPriceCents,
			AllowOversell:  allowOversell,
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				s.warnSkipped(ctx, order.ID, item, "product has no inventory batches")
				continue
			}
			return nil, err
		}
		touched[productID] = struct{}{}
		charged = append(charged, reservation.LineKey{ProductID: productID, Variant: item.Variant})
	}

	ids := make([]uuid.UUID, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := s.inventory.SyncPublicStock(ctx, tx, id); err != nil {
			return nil, err
		}
	}
	return charged, nil
}

func (s *service) warnSkipped(ctx context.Context, orderID string, item types.StructuredItem, reason string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID,
		"product_id": item.ProductID,
		"variant":    item.Variant,
		"reason":     reason,
	})
	s.logg.Warn(logCtx, "order line not deducted")
}

// statusRank orders the forward lifecycle; Cancelado sits outside it.
var statusRank = map[enums.OrderStatus]int{
	enums.OrderStatusProcessing: 0,
	enums.OrderStatusPaid:       1,
	enums.OrderStatusShipped:    2,
	enums.OrderStatusDelivered:  3,
}

func validateTransition(from, to enums.OrderStatus) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already "+from.String())
	}
	if to == enums.OrderStatusCanceled {
		return nil
	}
	if statusRank[to] <= statusRank[from] {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to))
	}
	return nil
}

func toList(rows []models.Order, limit int) *OrderList {
	page := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := &OrderList{Orders: make([]OrderDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, o := range page.Items {
		out.Orders = append(out.Orders, NewOrderDTO(o))
	}
	return out
}

func buildActor(userID string) *outbox.ActorRef {
	if userID == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: "admin"}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

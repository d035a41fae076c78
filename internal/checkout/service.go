package checkout

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/internal/cart"
	"github.com/vitrine-commerce/vitrine-backend/internal/catalog"
	"github.com/vitrine-commerce/vitrine-backend/internal/coupons"
	"github.com/vitrine-commerce/vitrine-backend/internal/notifications"
	"github.com/vitrine-commerce/vitrine-backend/internal/orders"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	pkgcheckout "github.com/vitrine-commerce/vitrine-backend/pkg/checkout"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

const maxOrderIDAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartStore interface {
	Lines(ctx context.Context, sessionID string) ([]cart.Line, error)
	Clear(ctx context.Context, sessionID string) error
}

type productLoader interface {
	FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type couponRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, code string, subtotalCents int64) (*coupons.Quote, error)
}

type stockCommitter interface {
	CommitForOrder(ctx context.Context, tx *gorm.DB, actor reservation.Actor, orderID string, lines []reservation.OrderLine) error
}

type spendRecorder interface {
	AddSpend(ctx context.Context, userID string, cents int64) (enums.LoyaltyTier, error)
}

type handoffLinker interface {
	Link(channel enums.HandoffChannel, text string) (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CheckoutInput carries what the shopper submits to place an order.
type CheckoutInput struct {
	Actor        reservation.Actor
	Email        string
	ShippingInfo types.ShippingInfo
	Channel      enums.HandoffChannel
	Method       enums.PaymentMethod
	CouponCode   string
}

// Result is the placed order plus the chat deep link that completes payment.
type Result struct {
	Order       orders.OrderDTO   `json:"order"`
	HandoffURL  string            `json:"handoff_url,omitempty"`
	HandoffText string            `json:"handoff_text"`
	Tier        enums.LoyaltyTier `json:"tier,omitempty"`
}

// Deps groups the checkout collaborators.
type Deps struct {
	Tx           txRunner
	Cart         cartStore
	Products     productLoader
	Orders       orders.Repository
	Coupons      couponRedeemer
	Reservations stockCommitter
	Loyalty      spendRecorder
	Handoff      handoffLinker
	Outbox       outboxPublisher
	Logger       *logger.Logger
}

type Service struct {
	deps   Deps
	now    func() time.Time
	random io.Reader
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart store required")
	case deps.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Coupons == nil:
		return nil, fmt.Errorf("coupon redeemer required")
	case deps.Reservations == nil:
		return nil, fmt.Errorf("stock committer required")
	case deps.Handoff == nil:
		return nil, fmt.Errorf("handoff linker required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Service{deps: deps, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Checkout turns the session's cart into an order. Stock is re-checked per
// line and the session's holds become order allocations in the same
// transaction as the order, coupon use and order_created event. Clearing the
// cart and crediting loyalty spend happen afterwards and never undo the order.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (*Result, error) {
	actor := input.Actor
	actor.SessionID = strings.TrimSpace(actor.SessionID)
	actor.UserID = strings.TrimSpace(actor.UserID)
	if actor.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid handoff channel")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(input.ShippingInfo.Email))
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	input.ShippingInfo.Email = email

	lines, err := s.deps.Cart.Lines(ctx, actor.SessionID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	items, subtotal, err := s.priceLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		SessionID:      actor.SessionID,
		CustomerEmail:  email,
		Status:         enums.OrderStatusProcessing,
		Items:          items,
		ShippingInfo:   input.ShippingInfo,
		PaymentChannel: input.Channel,
		PaymentMethod:  input.Method,
		SubtotalCents:  subtotal,
		TotalCents:     subtotal,
	}
	if actor.UserID != "" {
		uid := actor.UserID
		order.UserID = &uid
	}

	if err := s.place(ctx, order, actor, coupons.NormalizeCode(input.CouponCode)); err != nil {
		return nil, err
	}

	event := orderCreatedPayload(*order)
	result := &Result{
		Order:       orders.NewOrderDTO(*order),
		HandoffText: notifications.HandoffText(event),
	}

	var postErr error
	if err := s.deps.Cart.Clear(ctx, actor.SessionID); err != nil {
		postErr = multierr.Append(postErr, fmt.Errorf("clear cart: %w", err))
	}
	if actor.UserID != "" && s.deps.Loyalty != nil {
		tier, err := s.deps.Loyalty.AddSpend(ctx, actor.UserID, order.TotalCents)
		if err != nil {
			postErr = multierr.Append(postErr, fmt.Errorf("add loyalty spend: %w", err))
		} else {
			result.Tier = tier
		}
	}
	link, err := s.deps.Handoff.Link(input.Channel, result.HandoffText)
	if err != nil {
		postErr = multierr.Append(postErr, fmt.Errorf("build handoff link: %w", err))
	} else {
		result.HandoffURL = link
	}
	if postErr != nil && s.deps.Logger != nil {
		logCtx := s.deps.Logger.WithFields(ctx, map[string]any{
			"order_id": order.ID,
			"errors":   multierr.Errors(postErr),
		})
		s.deps.Logger.Warn(logCtx, "checkout follow-up steps failed")
	}
	return result, nil
}

func (s *Service) place(ctx context.Context, order *models.Order, actor reservation.Actor, couponCode string) error {
	var lastErr error
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		id, err := NewOrderID(s.now(), s.random)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order id")
		}
		order.ID = id
		order.CouponCode = nil
		order.DiscountCents = 0
		order.TotalCents = order.SubtotalCents

		lastErr = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
			if couponCode != "" {
				quote, err := s.deps.Coupons.Redeem(ctx, tx, couponCode, order.SubtotalCents)
				if err != nil {
					return err
				}
				code := quote.Code
				order.CouponCode = &code
				order.DiscountCents = quote.DiscountCents
				order.TotalCents = quote.TotalCents
			}
			if err := s.deps.Orders.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			if err := s.deps.Reservations.CommitForOrder(ctx, tx, actor, order.ID, orderLines(order.Items)); err != nil {
				return err
			}
			return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: actor.UserID, SessionID: actor.SessionID, Role: "shopper"},
				Data:          orderCreatedPayload(*order),
				OccurredAt:    s.now(),
			})
		})
		if lastErr == nil {
			return nil
		}
		if !db.IsUniqueViolation(lastErr, "orders_pkey") {
			break
		}
	}
	if pkgerrors.As(lastErr) != nil {
		return lastErr
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "place order")
}

func (s *Service) priceLines(ctx context.Context, lines []cart.Line) (types.OrderItems, int64, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if id, err := uuid.Parse(line.ProductID); err == nil {
			ids = append(ids, id)
		}
	}
	products, err := s.deps.Products.FindMany(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	checks := make([]pkgcheckout.LineCheck, 0, len(lines))
	items := make(types.OrderItems, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		check := pkgcheckout.LineCheck{ProductID: line.ProductID, Variant: line.Variant, Quantity: line.Quantity}
		id, err := uuid.Parse(line.ProductID)
		product, found := products[id]
		if err != nil || !found {
			checks = append(checks, check)
			continue
		}
		check.Found = true
		check.Active = product.IsActive
		check.ProductName = product.Name

		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0]
		}
		if line.Variant != "" {
			variant, ok := product.Variant(line.Variant)
			check.VariantExists = ok
			if ok && variant.Image != nil {
				image = *variant.Image
			}
		}
		checks = append(checks, check)

		item := types.StructuredItem{
			ProductID:      line.ProductID,
			Name:           product.Name,
			Variant:        line.Variant,
			Quantity:       line.Quantity,
			UnitPriceCents: catalog.UnitPrice(product, line.Variant),
			Image:          image,
		}
		subtotal += item.LineTotalCents()
		items = append(items, item)
	}
	if err := pkgcheckout.ValidateLines(checks); err != nil {
		return nil, 0, err
	}
	return items, subtotal, nil
}

func orderLines(items types.OrderItems) []reservation.OrderLine {
	structured := items.Structured()
	lines := make([]reservation.OrderLine, 0, len(structured))
	for _, item := range structured {
		lines = append(lines, reservation.OrderLine{ProductID: item.ProductID, Variant: item.Variant, Quantity: item.Quantity})
	}
	return lines
}

func orderCreatedPayload(o models.Order) payloads.OrderCreatedEvent {
	lines := make([]payloads.OrderLine, 0, len(o.Items))
	for _, item := range o.Items {
		line := payloads.OrderLine{Description: item.Description(), Units: item.Units()}
		if s, ok := item.(types.StructuredItem); ok {
			line.LineTotalCents = s.LineTotalCents()
		}
		lines = append(lines, line)
	}
	coupon := ""
	if o.CouponCode != nil {
		coupon = *o.CouponCode
	}
	return payloads.OrderCreatedEvent{
		OrderID:         o.ID,
		CustomerName:    o.ShippingInfo.Name,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.ShippingInfo.Phone,
		ShippingAddress: o.ShippingInfo.Address.OneLine(),
		Items:           lines,
		SubtotalCents:   o.SubtotalCents,
		DiscountCents:   o.DiscountCents,
		TotalCents:      o.TotalCents,
		CouponCode:      coupon,
		PaymentChannel:  o.PaymentChannel.String(),
		PaymentMethod:   o.PaymentMethod.String(),
		CreatedAt:       o.CreatedAt,
	}
}

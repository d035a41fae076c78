package orders

import (
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/money"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

// AdminOrderFilters narrow the back-office order list.
type AdminOrderFilters struct {
	Status *enums.OrderStatus
	Email  string
}

// Viewer is who is asking for an order. Shoppers see their own orders:
// by account, or by the guest session that placed them.
type Viewer struct {
	UserID    string
	SessionID string
	Admin     bool
}

func (v Viewer) owns(order models.Order) bool {
	if v.Admin {
		return true
	}
	if v.UserID != "" && order.UserID != nil && *order.UserID == v.UserID {
		return true
	}
	return v.SessionID != "" && order.SessionID == v.SessionID
}

type ItemDTO struct {
	Description    string `json:"description"`
	Units          int    `json:"units"`
	ProductID      string `json:"product_id,omitempty"`
	Variant        string `json:"variant,omitempty"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
	LineTotalCents int64  `json:"line_total_cents,omitempty"`
	Legacy         bool   `json:"legacy,omitempty"`
}

type OrderDTO struct {
	ID             string               `json:"id"`
	Status         enums.OrderStatus    `json:"status"`
	CustomerEmail  string               `json:"customer_email"`
	Items          []ItemDTO            `json:"items"`
	ShippingInfo   types.ShippingInfo   `json:"shipping_info"`
	PaymentChannel enums.HandoffChannel `json:"payment_channel"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	SubtotalCents  int64                `json:"subtotal_cents"`
	DiscountCents  int64                `json:"discount_cents"`
	TotalCents     int64                `json:"total_cents"`
	TotalLabel     string               `json:"total_label"`
	CouponCode     *string              `json:"coupon_code,omitempty"`
	TrackingNumber *string              `json:"tracking_number,omitempty"`
	PointsAwarded  bool                 `json:"points_awarded"`
	StockDeducted  bool                 `json:"stock_deducted"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func NewOrderDTO(o models.Order) OrderDTO {
	items := make([]ItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		switch v := item.(type) {
		case types.StructuredItem:
			items = append(items, ItemDTO{
				Description:    v.Description(),
				Units:          v.Units(),
				ProductID:      v.ProductID,
				Variant:        v.Variant,
				UnitPriceCents: v.UnitPriceCents,
				LineTotalCents: v.LineTotalCents(),
			})
		case types.LegacyItem:
			items = append(items, ItemDTO{Description: v.Description(), Units: v.Units(), Legacy: true})
		}
	}
	return OrderDTO{
		ID:             o.ID,
		Status:         o.Status,
		CustomerEmail:  o.CustomerEmail,
		Items:          items,
		ShippingInfo:   o.ShippingInfo,
		PaymentChannel: o.PaymentChannel,
		PaymentMethod:  o.PaymentMethod,
		SubtotalCents:  o.SubtotalCents,
		DiscountCents:  o.DiscountCents,
		TotalCents:     o.TotalCents,
		TotalLabel:     money.FormatBRL(o.TotalCents),
		CouponCode:     o.CouponCode,
		TrackingNumber: o.TrackingNumber,
		PointsAwarded:  o.PointsAwarded,
		StockDeducted:  o.StockDeducted,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

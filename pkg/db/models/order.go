package models

import (
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

// Order is a placed order. Guest orders have no UserID until a later sign-in
// with the same email claims them.
type Order struct {
	ID             string               `gorm:"column:id;primaryKey"`
	UserID         *string              `gorm:"column:user_id;index"`
	SessionID      string               `gorm:"column:session_id;not null;default:''"`
	CustomerEmail  string               `gorm:"column:customer_email;not null;index"`
	Status         enums.OrderStatus    `gorm:"column:status;not null"`
	Items          types.OrderItems     `gorm:"column:items;type:jsonb;not null"`
	ShippingInfo   types.ShippingInfo   `gorm:"column:shipping_info;type:jsonb;not null"`
	PaymentChannel enums.HandoffChannel `gorm:"column:payment_channel;not null"`
	PaymentMethod  enums.PaymentMethod  `gorm:"column:payment_method;not null"`
	SubtotalCents  int64                `gorm:"column:subtotal_cents;not null"`
	DiscountCents  int64                `gorm:"column:discount_cents;not null;default:0"`
	TotalCents     int64                `gorm:"column:total_cents;not null"`
	CouponCode     *string              `gorm:"column:coupon_code"`
	TrackingNumber *string              `gorm:"column:tracking_number"`
	PointsAwarded  bool                 `gorm:"column:points_awarded;not null;default:false"`
	StockDeducted  bool                 `gorm:"column:stock_deducted;not null;default:false"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

package models

import (
	"time"

	"github.com/google/uuid"
)

// StockReservation is a hold on units of a product variant. Cart holds are
// time-boxed and keyed by their holder so one holder keeps at most one row per
// (product, variant). Checkout turns them into order allocations, which carry
// an OrderID and count against stock until the order's inventory is deducted
// or the order is closed.
type StockReservation struct {
	ID          string    `gorm:"column:id;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:ix_stock_reservations_product"`
	VariantName string    `gorm:"column:variant_name;not null;default:''"`
	Quantity    int       `gorm:"column:quantity;not null"`
	SessionID   string    `gorm:"column:session_id;not null;index"`
	UserID      *string   `gorm:"column:user_id;index"`
	OrderID     *string   `gorm:"column:order_id;index"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockReservation) TableName() string { return "stock_reservations" }

// IsAllocation reports whether the row belongs to a placed order.
func (r StockReservation) IsAllocation() bool {
	return r.OrderID != nil
}

// ActiveAt reports whether the row still counts against stock at now.
// Allocations never expire.
func (r StockReservation) ActiveAt(now time.Time) bool {
	return r.IsAllocation() || r.ExpiresAt.After(now)
}

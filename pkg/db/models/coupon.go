package models

import (
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
)

// Coupon is a discount code. Value is a whole percentage for percentage
// coupons and cents for fixed ones.
type Coupon struct {
	Code             string           `gorm:"column:code;primaryKey"`
	Type             enums.CouponType `gorm:"column:type;not null"`
	Value            int64            `gorm:"column:value;not null"`
	MinPurchaseCents int64            `gorm:"column:min_purchase_cents;not null;default:0"`
	IsActive         bool             `gorm:"column:is_active;not null"`
	UsageCount       int              `gorm:"column:usage_count;not null;default:0"`
	MaxUses          int              `gorm:"column:max_uses;not null;default:0"`
	ExpiresAt        *time.Time       `gorm:"column:expires_at"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

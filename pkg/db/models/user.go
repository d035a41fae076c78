package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

// User is a shopper profile keyed by the identity provider's subject.
type User struct {
	ID               string            `gorm:"column:id;primaryKey"`
	Email            string            `gorm:"column:email;not null;uniqueIndex"`
	Name             string            `gorm:"column:name;not null;default:''"`
	Phone            *string           `gorm:"column:phone"`
	Addresses        types.Addresses   `gorm:"column:addresses;type:jsonb"`
	LoyaltyPoints    int64             `gorm:"column:loyalty_points;not null;default:0"`
	Tier             enums.LoyaltyTier `gorm:"column:tier;not null;default:'Bronze'"`
	TotalSpentCents  int64             `gorm:"column:total_spent_cents;not null;default:0"`
	LastReconciledAt *time.Time        `gorm:"column:last_reconciled_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// PointsEntry is an append-only loyalty ledger row. The unique index on
// (user_id, order_id, reason) makes order awards idempotent.
type PointsEntry struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID    string             `gorm:"column:user_id;not null;uniqueIndex:ux_points_ledger_award"`
	OrderID   *string            `gorm:"column:order_id;uniqueIndex:ux_points_ledger_award"`
	Reason    enums.PointsReason `gorm:"column:reason;not null;uniqueIndex:ux_points_ledger_award"`
	Points    int64              `gorm:"column:points;not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (PointsEntry) TableName() string { return "points_ledger" }

func (p *PointsEntry) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

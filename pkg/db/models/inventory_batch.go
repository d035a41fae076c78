package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
)

// InventoryBatch is one purchase lot in the private inventory ledger.
type InventoryBatch struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	PublicProductID      *uuid.UUID           `gorm:"column:public_product_id;type:uuid;index"`
	Variant              string               `gorm:"column:variant;not null;default:''"`
	Name                 string               `gorm:"column:name;not null"`
	QuantityBought       int                  `gorm:"column:quantity_bought;not null"`
	QuantitySold         int                  `gorm:"column:quantity_sold;not null;default:0"`
	PurchasePriceCents   int64                `gorm:"column:purchase_price_cents;not null"`
	TargetSalePriceCents int64                `gorm:"column:target_sale_price_cents;not null;default:0"`
	SupplierName         string               `gorm:"column:supplier_name;not null;default:''"`
	SupplierContact      *string              `gorm:"column:supplier_contact"`
	CashbackStatus       enums.CashbackStatus `gorm:"column:cashback_status;not null;default:'none'"`
	CashbackCents        int64                `gorm:"column:cashback_cents;not null;default:0"`
	Notes                *string              `gorm:"column:notes"`
	PurchasedAt          time.Time            `gorm:"column:purchased_at;not null"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryBatch) TableName() string { return "products_inventory" }

func (b *InventoryBatch) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CashbackStatus == "" {
		b.CashbackStatus = enums.CashbackNone
	}
	return nil
}

// Remaining is bought minus sold. It goes negative only after an oversell
// override.
func (b InventoryBatch) Remaining() int {
	return b.QuantityBought - b.QuantitySold
}

// InventorySale is an append-only sale record against a batch.
type InventorySale struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BatchID        uuid.UUID  `gorm:"column:batch_id;type:uuid;not null;index"`
	OrderID        *string    `gorm:"column:order_id;index"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
	Oversold       bool       `gorm:"column:oversold;not null;default:false"`
	SoldAt         time.Time  `gorm:"column:sold_at;not null"`
	ReversedAt     *time.Time `gorm:"column:reversed_at"`
}

func (InventorySale) TableName() string { return "inventory_sales" }

func (s *InventorySale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

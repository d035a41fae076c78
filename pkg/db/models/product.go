package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Product is the public catalog entry shoppers browse. Stock is derived from
// inventory batches by the sync job and is read-only in the storefront.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Category    string         `gorm:"column:category;not null;index"`
	Description *string        `gorm:"column:description"`
	PriceCents  int64          `gorm:"column:price_cents;not null"`
	Images      pq.StringArray `gorm:"column:images;type:text[]"`
	Stock       int            `gorm:"column:stock;not null;default:0"`
	IsActive    bool           `gorm:"column:is_active;not null"`
	// ReservationVersion is bumped by every reservation write on the product
	// so that concurrent reservers contend on the product row.
	ReservationVersion int64            `gorm:"column:reservation_version;not null;default:0"`
	Variants           []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products_public" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Variant returns the named variant, if present.
func (p Product) Variant(name string) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// ProductVariant is a size/color option tracked with its own stock.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_variants_name"`
	Name       string    `gorm:"column:name;not null;uniqueIndex:ux_product_variants_name"`
	PriceCents *int64    `gorm:"column:price_cents"`
	Image      *string   `gorm:"column:image"`
	Stock      int       `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductVariant) TableName() string { return "product_variants" }

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/money"
)

// ProductDTO is the storefront shape of a catalog entry.
type ProductDTO struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Description *string      `json:"description,omitempty"`
	PriceCents  int64        `json:"price_cents"`
	PriceLabel  string       `json:"price_label"`
	Images      []string     `json:"images"`
	Stock       int          `json:"stock"`
	IsActive    bool         `json:"is_active"`
	Variants    []VariantDTO `json:"variants,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type VariantDTO struct {
	Name       string  `json:"name"`
	PriceCents int64   `json:"price_cents"`
	Image      *string `json:"image,omitempty"`
	Stock      int     `json:"stock"`
}

func NewProductDTO(p models.Product) ProductDTO {
	images := []string(p.Images)
	if images == nil {
		images = []string{}
	}
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		PriceLabel:  money.FormatBRL(p.PriceCents),
		Images:      images,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, v := range p.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{
			Name:       v.Name,
			PriceCents: UnitPrice(p, v.Name),
			Image:      v.Image,
			Stock:      v.Stock,
		})
	}
	return dto
}

// UnitPrice is the variant's own price when set, otherwise the product price.
func UnitPrice(p models.Product, variant string) int64 {
	if variant == "" {
		return p.PriceCents
	}
	if v, ok := p.Variant(variant); ok && v.PriceCents != nil {
		return *v.PriceCents
	}
	return p.PriceCents
}

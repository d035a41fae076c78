package inventory

import (
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/money"
)

type BatchDTO struct {
	ID                   string               `json:"id"`
	PublicProductID      *string              `json:"public_product_id,omitempty"`
	Variant              string               `json:"variant,omitempty"`
	Name                 string               `json:"name"`
	QuantityBought       int                  `json:"quantity_bought"`
	QuantitySold         int                  `json:"quantity_sold"`
	Remaining            int                  `json:"remaining"`
	PurchasePriceCents   int64                `json:"purchase_price_cents"`
	TargetSalePriceCents int64                `json:"target_sale_price_cents"`
	SupplierName         string               `json:"supplier_name,omitempty"`
	SupplierContact      *string              `json:"supplier_contact,omitempty"`
	CashbackStatus       enums.CashbackStatus `json:"cashback_status"`
	CashbackCents        int64                `json:"cashback_cents"`
	Notes                *string              `json:"notes,omitempty"`
	PurchasedAt          time.Time            `json:"purchased_at"`
	CreatedAt            time.Time            `json:"created_at"`
}

func NewBatchDTO(b models.InventoryBatch) BatchDTO {
	dto := BatchDTO{
		ID:                   b.ID.String(),
		Variant:              b.Variant,
		Name:                 b.Name,
		QuantityBought:       b.QuantityBought,
		QuantitySold:         b.QuantitySold,
		Remaining:            b.Remaining(),
		PurchasePriceCents:   b.PurchasePriceCents,
		TargetSalePriceCents: b.TargetSalePriceCents,
		SupplierName:         b.SupplierName,
		SupplierContact:      b.SupplierContact,
		CashbackStatus:       b.CashbackStatus,
		CashbackCents:        b.CashbackCents,
		Notes:                b.Notes,
		PurchasedAt:          b.PurchasedAt,
		CreatedAt:            b.CreatedAt,
	}
	if b.PublicProductID != nil {
		id := b.PublicProductID.String()
		dto.PublicProductID = &id
	}
	return dto
}

// Summary aggregates a product's batches.
type Summary struct {
	ProductID     string `json:"product_id,omitempty"`
	Batches       int    `json:"batches"`
	Bought        int    `json:"bought"`
	Sold          int    `json:"sold"`
	Remaining     int    `json:"remaining"`
	CostCents     int64  `json:"cost_cents"`
	RevenueCents  int64  `json:"revenue_cents"`
	CashbackCents int64  `json:"cashback_cents"`
	ProfitCents   int64  `json:"profit_cents"`
	ProfitLabel   string `json:"profit_label"`
}

// Allocation is the part of a deduction charged to one batch.
type Allocation struct {
	BatchID  string `json:"batch_id"`
	Quantity int    `json:"quantity"`
	Oversold bool   `json:"oversold,omitempty"`
}

// StockSnapshot is the public stock written by a sync.
type StockSnapshot struct {
	ProductID string         `json:"product_id"`
	Stock     int            `json:"stock"`
	Variants  map[string]int `json:"variants,omitempty"`
}

func summarize(batches []models.InventoryBatch, sales []models.InventorySale) Summary {
	var s Summary
	s.Batches = len(batches)
	for _, b := range batches {
		s.Bought += b.QuantityBought
		s.Sold += b.QuantitySold
		s.Remaining += b.Remaining()
		s.CostCents += int64(b.QuantityBought) * b.PurchasePriceCents
		if b.CashbackStatus == enums.CashbackReceived {
			s.CashbackCents += b.CashbackCents
		}
	}
	for _, sale := range sales {
		s.RevenueCents += int64(sale.Quantity) * sale.UnitPriceCents
	}
	s.ProfitCents = s.RevenueCents + s.CashbackCents - s.CostCents
	s.ProfitLabel = money.FormatBRL(s.ProfitCents)
	return s
}

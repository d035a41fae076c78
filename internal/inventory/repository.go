package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, batch *models.InventoryBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryBatch, error) {
	var batch models.InventoryBatch
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// List returns batches oldest purchase first. A nil productID lists every batch.
func (r *Repository) List(ctx context.Context, productID *uuid.UUID) ([]models.InventoryBatch, error) {
	q := r.db.WithContext(ctx).Model(&models.InventoryBatch{})
	if productID != nil {
		q = q.Where("public_product_id = ?", *productID)
	}
	var rows []models.InventoryBatch
	err := q.Order("purchased_at ASC").Order("created_at ASC").Find(&rows).Error
	return rows, err
}

// LockFIFO locks the batches of one product variant in consumption order.
func (r *Repository) LockFIFO(ctx context.Context, productID uuid.UUID, variant string) ([]models.InventoryBatch, error) {
	var rows []models.InventoryBatch
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("public_product_id = ? AND variant = ?", productID, variant).
		Order("purchased_at ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) AddSold(ctx context.Context, batchID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ?", batchID).
		UpdateColumn("quantity_sold", gorm.Expr("quantity_sold + ?", delta)).Error
}

func (r *Repository) InsertSale(ctx context.Context, sale *models.InventorySale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *Repository) OpenSalesForOrder(ctx context.Context, orderID string) ([]models.InventorySale, error) {
	var rows []models.InventorySale
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND reversed_at IS NULL", orderID).
		Order("sold_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkSaleReversed(ctx context.Context, saleID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.InventorySale{}).
		Where("id = ?", saleID).
		UpdateColumn("reversed_at", at).Error
}

func (r *Repository) SalesForBatches(ctx context.Context, batchIDs []uuid.UUID) ([]models.InventorySale, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}
	var rows []models.InventorySale
	err := r.db.WithContext(ctx).
		Where("batch_id IN ? AND reversed_at IS NULL", batchIDs).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Preload("Variants").
		First(&product, "id = ?", productID).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) SetProductStock(ctx context.Context, productID uuid.UUID, stock int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", stock).Error
}

func (r *Repository) SetVariantStock(ctx context.Context, variantID uuid.UUID, stock int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", stock).Error
}

func (r *Repository) FindMany(ctx context.Context, ids []uuid.UUID) ([]models.InventoryBatch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.InventoryBatch
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

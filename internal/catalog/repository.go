package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
)

// Repository reads and writes the public catalog.
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

// ListFilter narrows catalog listings.
type ListFilter struct {
	Category   string
	OnlyActive bool
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	var products []models.Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindMany loads products keyed by id. Missing ids are simply absent.
func (r *Repository) FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Preload("Variants").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateFields writes the public columns of product without touching stock or
// the reservation version.
func (r *Repository) UpdateFields(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":        product.Name,
			"category":    product.Category,
			"description": product.Description,
			"price_cents": product.PriceCents,
			"images":      product.Images,
			"is_active":   product.IsActive,
		}).Error
}

// ReplaceVariants keeps existing variant rows (and their stock) by name,
// updates their public fields, inserts new names and drops missing ones.
func (r *Repository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	db := r.db.WithContext(ctx)
	var existing []models.ProductVariant
	if err := db.Where("product_id = ?", productID).Find(&existing).Error; err != nil {
		return err
	}
	byName := make(map[string]models.ProductVariant, len(existing))
	for _, v := range existing {
		byName[v.Name] = v
	}

	keep := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		keep[v.Name] = struct{}{}
		if current, ok := byName[v.Name]; ok {
			if err := db.Model(&models.ProductVariant{}).
				Where("id = ?", current.ID).
				Updates(map[string]any{"price_cents": v.PriceCents, "image": v.Image}).Error; err != nil {
				return err
			}
			continue
		}
		row := models.ProductVariant{ProductID: productID, Name: v.Name, PriceCents: v.PriceCents, Image: v.Image}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}

	for name, v := range byName {
		if _, ok := keep[name]; ok {
			continue
		}
		if err := db.Delete(&models.ProductVariant{}, "id = ?", v.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

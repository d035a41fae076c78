package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
)

// Repository persists stock reservations and reads the stock they count against.
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

// BumpVersion increments the product's reservation_version. Inside a
// transaction this takes the product row lock, so it must run before any
// reservation read. It reports false when the product does not exist.
func (r *Repository) BumpVersion(ctx context.Context, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("reservation_version", gorm.Expr("reservation_version + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListForProductVariant returns every hold on the variant, expired ones included.
func (r *Repository) ListForProductVariant(ctx context.Context, productID uuid.UUID, variant string) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_name = ?", productID, variant).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListForActor returns the actor's cart holds. Order allocations are excluded.
func (r *Repository) ListForActor(ctx context.Context, actor Actor) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := actorScope(r.db.WithContext(ctx), actor).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// Upsert writes the row keyed by its deterministic id.
func (r *Repository) Upsert(ctx context.Context, row *models.StockReservation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "session_id", "user_id", "order_id", "expires_at", "updated_at"}),
		}).
		Create(row).Error
}

func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.StockReservation{})
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteForActor(ctx context.Context, actor Actor) (int64, error) {
	res := actorScope(r.db.WithContext(ctx), actor).Delete(&models.StockReservation{})
	return res.RowsAffected, res.Error
}

// DeleteExpiredBefore removes lapsed cart holds. Allocations are kept.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("order_id IS NULL AND expires_at < ?", before).
		Delete(&models.StockReservation{})
	return res.RowsAffected, res.Error
}

// DeleteForOrder removes the order's allocations. With keys set only the
// matching (product, variant) rows go.
func (r *Repository) DeleteForOrder(ctx context.Context, orderID string, keys []LineKey) (int64, error) {
	q := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if len(keys) > 0 {
		ids := make([]string, 0, len(keys))
		for _, k := range keys {
			ids = append(ids, AllocationID(orderID, k.ProductID, k.Variant))
		}
		q = q.Where("id IN ?", ids)
	}
	res := q.Delete(&models.StockReservation{})
	return res.RowsAffected, res.Error
}

// actorScope matches cart holds by session; the user id only applies to
// actors without one.
func actorScope(db *gorm.DB, actor Actor) *gorm.DB {
	db = db.Where("order_id IS NULL")
	if actor.SessionID != "" {
		return db.Where("session_id = ?", actor.SessionID)
	}
	return db.Where("user_id = ?", actor.UserID)
}

package loyalty

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
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

func (r *Repository) LockUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ClaimGuestOrders links orders placed without an account to the user by email.
func (r *Repository) ClaimGuestOrders(ctx context.Context, userID, email string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id IS NULL AND LOWER(customer_email) = ?", email).
		UpdateColumn("user_id", userID)
	return res.RowsAffected, res.Error
}

func (r *Repository) SumSpend(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total_cents), 0)").
		Where("user_id = ? AND status <> ?", userID, enums.OrderStatusCanceled).
		Scan(&total).Error
	return total, err
}

func (r *Repository) UnawardedDelivered(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("user_id = ? AND status = ? AND points_awarded = ?", userID, enums.OrderStatusDelivered, false).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// UsersPendingAward lists users owning delivered orders that have not been
// credited yet.
func (r *Repository) UsersPendingAward(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Distinct("user_id").
		Where("user_id IS NOT NULL AND status = ? AND points_awarded = ?", enums.OrderStatusDelivered, false).
		Order("user_id").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, err
}

// InsertAward writes a ledger row; an existing row for the same key is left
// alone. It reports whether a row was written.
func (r *Repository) InsertAward(ctx context.Context, entry *models.PointsEntry) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "order_id"}, {Name: "reason"}},
			DoNothing: true,
		}).
		Create(entry)
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) MarkAwarded(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("points_awarded", true).Error
}

func (r *Repository) SumPoints(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PointsEntry{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

func (r *Repository) SaveStanding(ctx context.Context, userID string, spent, points int64, tier enums.LoyaltyTier, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"total_spent_cents":  spent,
			"loyalty_points":     points,
			"tier":               tier,
			"last_reconciled_at": at,
		}).Error
}

// AddSpend bumps total spend and returns the new total.
func (r *Repository) AddSpend(ctx context.Context, userID string, cents int64) (int64, error) {
	conn := r.db.WithContext(ctx)
	res := conn.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("total_spent_cents", gorm.Expr("total_spent_cents + ?", cents))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var user models.User
	if err := conn.Select("total_spent_cents").First(&user, "id = ?", userID).Error; err != nil {
		return 0, err
	}
	return user.TotalSpentCents, nil
}

func (r *Repository) SetTier(ctx context.Context, userID string, tier enums.LoyaltyTier) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("tier", tier).Error
}

func (r *Repository) History(ctx context.Context, userID string, limit int) ([]models.PointsEntry, error) {
	var rows []models.PointsEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

package loyalty

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Config struct {
	Thresholds    Thresholds
	PointsPerUnit int64
}

// Standing is a user's loyalty state after reconciliation.
type Standing struct {
	UserID          string            `json:"user_id"`
	Tier            enums.LoyaltyTier `json:"tier"`
	TotalSpentCents int64             `json:"total_spent_cents"`
	LoyaltyPoints   int64             `json:"loyalty_points"`
	ClaimedOrders   int64             `json:"claimed_orders"`
	AwardedOrders   int               `json:"awarded_orders"`
	ReconciledAt    time.Time         `json:"reconciled_at"`
}

type HistoryEntry struct {
	OrderID   *string            `json:"order_id,omitempty"`
	Reason    enums.PointsReason `json:"reason"`
	Points    int64              `json:"points"`
	CreatedAt time.Time          `json:"created_at"`
}

type Service struct {
	tx   txRunner
	repo *Repository
	cfg  Config
	logg *logger.Logger
	now  func() time.Time
}

func NewService(tx txRunner, repo *Repository, cfg Config, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if cfg.Thresholds.SilverCents <= 0 || cfg.Thresholds.GoldCents <= cfg.Thresholds.SilverCents {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Service{
		tx:   tx,
		repo: repo,
		cfg:  cfg,
		logg: logg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Reconcile claims guest orders placed with the user's email, recomputes
// spend and tier, and awards points for delivered orders not yet credited.
// Awards are keyed on (user, order, reason) so repeated runs credit once.
func (s *Service) Reconcile(ctx context.Context, userID string) (*Standing, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	var standing Standing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.LockUser(ctx, userID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
		}

		claimed, err := repo.ClaimGuestOrders(ctx, userID, strings.ToLower(user.Email))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim guest orders")
		}

		spent, err := repo.SumSpend(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum spend")
		}

		delivered, err := repo.UnawardedDelivered(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivered orders")
		}
		awarded := 0
		for i := range delivered {
			order := delivered[i]
			orderID := order.ID
			inserted, err := repo.InsertAward(ctx, &models.PointsEntry{
				UserID:  userID,
				OrderID: &orderID,
				Reason:  enums.PointsOrderDelivered,
				Points:  PointsFor(order.TotalCents, s.cfg.PointsPerUnit),
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert points award")
			}
			if err := repo.MarkAwarded(ctx, orderID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag order awarded")
			}
			if inserted {
				awarded++
			}
		}

		points, err := repo.SumPoints(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum points")
		}

		now := s.now()
		tier := TierFor(spent, s.cfg.Thresholds)
		if err := repo.SaveStanding(ctx, userID, spent, points, tier, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save loyalty standing")
		}
		standing = Standing{
			UserID:          userID,
			Tier:            tier,
			TotalSpentCents: spent,
			LoyaltyPoints:   points,
			ClaimedOrders:   claimed,
			AwardedOrders:   awarded,
			ReconciledAt:    now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil && (standing.ClaimedOrders > 0 || standing.AwardedOrders > 0) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":        userID,
			"claimed_orders": standing.ClaimedOrders,
			"awarded_orders": standing.AwardedOrders,
			"tier":           standing.Tier,
		})
		s.logg.Info(logCtx, "loyalty reconciled")
	}
	return &standing, nil
}

// AddSpend credits a freshly placed order to the user's spend and moves the
// tier. The next Reconcile recomputes both from orders.
func (s *Service) AddSpend(ctx context.Context, userID string, cents int64) (enums.LoyaltyTier, error) {
	if strings.TrimSpace(userID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if cents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "spend must be positive")
	}
	var tier enums.LoyaltyTier
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		total, err := repo.AddSpend(ctx, userID, cents)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add spend")
		}
		tier = TierFor(total, s.cfg.Thresholds)
		if err := repo.SetTier(ctx, userID, tier); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set tier")
		}
		return nil
	})
	return tier, err
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := s.repo.History(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load points history")
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryEntry{
			OrderID:   row.OrderID,
			Reason:    row.Reason,
			Points:    row.Points,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// PendingAwards lists users with delivered orders whose points have not been
// credited yet, for the background reconcile job.
func (s *Service) PendingAwards(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	ids, err := s.repo.UsersPendingAward(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users pending award")
	}
	return ids, nil
}

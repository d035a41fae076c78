package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/vitrine-commerce/vitrine-backend/internal/loyalty"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

const defaultReconcileBatch = 100

type LoyaltyReconcileJobParams struct {
	Logger    *logger.Logger
	Loyalty   loyaltyReconciler
	BatchSize int
}

type loyaltyReconciler interface {
	PendingAwards(ctx context.Context, limit int) ([]string, error)
	Reconcile(ctx context.Context, userID string) (*loyalty.Standing, error)
}

// NewLoyaltyReconcileJob credits points for delivered orders of shoppers who
// have not signed in since delivery.
func NewLoyaltyReconcileJob(params LoyaltyReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &loyaltyReconcileJob{logg: params.Logger, loyalty: params.Loyalty, batch: batch}, nil
}

type loyaltyReconcileJob struct {
	logg    *logger.Logger
	loyalty loyaltyReconciler
	batch   int
}

func (j *loyaltyReconcileJob) Name() string { return "loyalty-reconcile" }

// Run reconciles every pending user in the batch. One user's failure does not
// stop the others; all failures are returned together.
func (j *loyaltyReconcileJob) Run(ctx context.Context) error {
	ids, err := j.loyalty.PendingAwards(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list pending awards: %w", err)
	}
	var errs error
	awarded := 0
	for _, id := range ids {
		standing, err := j.loyalty.Reconcile(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", id, err))
			continue
		}
		awarded += standing.AwardedOrders
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users":          len(ids),
		"orders_awarded": awarded,
		"failures":       len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "loyalty reconcile complete")
	return errs
}

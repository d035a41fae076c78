package cron

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"

	"github.com/vitrine-commerce/vitrine-backend/internal/loyalty"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

type fakeReconciler struct {
	pending    []string
	failFor    map[string]bool
	reconciled []string
}

func (f *fakeReconciler) PendingAwards(context.Context, int) ([]string, error) {
	return f.pending, nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, userID string) (*loyalty.Standing, error) {
	f.reconciled = append(f.reconciled, userID)
	if f.failFor[userID] {
		return nil, errors.New("lock timeout")
	}
	return &loyalty.Standing{UserID: userID, AwardedOrders: 1}, nil
}

func TestLoyaltyReconcileJobContinuesPastFailures(t *testing.T) {
	rec := &fakeReconciler{pending: []string{"u1", "u2", "u3"}, failFor: map[string]bool{"u2": true}}
	job, err := NewLoyaltyReconcileJob(LoyaltyReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Loyalty: rec,
	})
	if err != nil {
		t.Fatalf("NewLoyaltyReconcileJob: %v", err)
	}
	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Fatalf("expected 1 failure, got %d", n)
	}
	if len(rec.reconciled) != 3 {
		t.Fatalf("expected all users attempted, got %v", rec.reconciled)
	}
}

func TestLoyaltyReconcileJobNoPending(t *testing.T) {
	job, err := NewLoyaltyReconcileJob(LoyaltyReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Loyalty: &fakeReconciler{},
	})
	if err != nil {
		t.Fatalf("NewLoyaltyReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

const defaultSweepGrace = time.Hour

type ReservationSweepJobParams struct {
	Logger *logger.Logger
	Purger reservationPurger
	// Grace is how long an expired hold is kept before deletion.
	Grace time.Duration
}

type reservationPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// NewReservationSweepJob deletes stock holds that expired more than Grace ago.
// Expired holds already stop counting against stock; this only reclaims rows.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("reservation purger required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultSweepGrace
	}
	return &reservationSweepJob{logg: params.Logger, purger: params.Purger, grace: grace, now: time.Now}, nil
}

type reservationSweepJob struct {
	logg   *logger.Logger
	purger reservationPurger
	grace  time.Duration
	now    func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	n, err := j.purger.PurgeExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("reservation sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "rows_deleted": n})
	j.logg.Info(logCtx, "expired reservations swept")
	return nil
}

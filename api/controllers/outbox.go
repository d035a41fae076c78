package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

type deadLetters interface {
	List(ctx context.Context, reason string, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

type deadLetterResponse struct {
	EventID      uuid.UUID `json:"event_id"`
	EventType    string    `json:"event_type"`
	AggregateID  string    `json:"aggregate_id"`
	Reason       string    `json:"reason"`
	Message      string    `json:"message,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	FailedAt     time.Time `json:"failed_at"`
}

// AdminDeadLetterList shows outbox events the publisher stopped retrying.
func AdminDeadLetterList(svc deadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason := r.URL.Query().Get("reason")
		if reason != "" && reason != models.DLQReasonNonRetryable && reason != models.DLQReasonMaxAttempts {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown reason %q", reason))
			return
		}
		rows, err := svc.List(r.Context(), reason, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]deadLetterResponse, 0, len(rows))
		for _, row := range rows {
			item := deadLetterResponse{
				EventID:      row.EventID,
				EventType:    string(row.EventType),
				AggregateID:  row.AggregateID,
				Reason:       row.ErrorReason,
				AttemptCount: row.AttemptCount,
				FailedAt:     row.FailedAt,
			}
			if row.ErrorMessage != nil {
				item.Message = *row.ErrorMessage
			}
			out = append(out, item)
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminDeadLetterRequeue puts a dead-lettered event back in the outbox.
func AdminDeadLetterRequeue(svc deadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := validators.ParseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Requeue(r.Context(), eventID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "event_id", eventID.String()), "dead letter requeued")
		}
		responses.WriteNoContent(w)
	}
}

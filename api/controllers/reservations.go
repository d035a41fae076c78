package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

type reservationService interface {
	Reserve(ctx context.Context, input reservation.ReserveInput) (*reservation.Result, error)
	ListActive(ctx context.Context, actor reservation.Actor) ([]models.StockReservation, error)
}

type reserveRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Variant   string `json:"variant,omitempty" validate:"max=60"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=999"`
}

type reservationResponse struct {
	ID        string     `json:"id,omitempty"`
	ProductID string     `json:"product_id"`
	Variant   string     `json:"variant,omitempty"`
	Quantity  int        `json:"quantity"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Released  bool       `json:"released,omitempty"`
	Bypassed  bool       `json:"bypassed,omitempty"`
}

// ReservationSet sets the caller's hold on a variant to an absolute quantity.
// Zero releases it.
func ReservationSet(svc reservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := sessionActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Reserve(r.Context(), reservation.ReserveInput{
			ProductID:   req.ProductID,
			VariantName: req.Variant,
			Quantity:    req.Quantity,
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservationResponse{
			ID:        result.ReservationID,
			ProductID: result.ProductID,
			Variant:   result.VariantName,
			Quantity:  result.Quantity,
			ExpiresAt: result.ExpiresAt,
			Released:  result.Released,
			Bypassed:  result.Bypassed,
		})
	}
}

func ReservationList(svc reservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := sessionActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListActive(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]reservationResponse, 0, len(rows))
		for _, row := range rows {
			expires := row.ExpiresAt
			out = append(out, reservationResponse{
				ID:        row.ID,
				ProductID: row.ProductID.String(),
				Variant:   row.VariantName,
				Quantity:  row.Quantity,
				ExpiresAt: &expires,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

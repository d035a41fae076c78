package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/internal/coupons"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/money"
)

type couponValidator interface {
	Validate(ctx context.Context, code string, subtotalCents int64) (*coupons.Quote, error)
}

type couponAdmin interface {
	Create(ctx context.Context, input coupons.CreateCouponInput) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	SetActive(ctx context.Context, code string, active bool) error
}

type validateCouponRequest struct {
	Code          string `json:"code" validate:"required,max=40"`
	SubtotalCents int64  `json:"subtotal_cents" validate:"gte=0"`
}

type quoteResponse struct {
	coupons.Quote
	TotalLabel string `json:"total_label"`
}

type couponResponse struct {
	Code             string           `json:"code"`
	Type             enums.CouponType `json:"type"`
	Value            int64            `json:"value"`
	MinPurchaseCents int64            `json:"min_purchase_cents"`
	IsActive         bool             `json:"is_active"`
	UsageCount       int              `json:"usage_count"`
	MaxUses          int              `json:"max_uses"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

func newCouponResponse(c models.Coupon) couponResponse {
	return couponResponse{
		Code:             c.Code,
		Type:             c.Type,
		Value:            c.Value,
		MinPurchaseCents: c.MinPurchaseCents,
		IsActive:         c.IsActive,
		UsageCount:       c.UsageCount,
		MaxUses:          c.MaxUses,
		ExpiresAt:        c.ExpiresAt,
		CreatedAt:        c.CreatedAt,
	}
}

// CouponValidate previews a coupon against a subtotal without redeeming it.
func CouponValidate(svc couponValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateCouponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Validate(r.Context(), req.Code, req.SubtotalCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quoteResponse{Quote: *quote, TotalLabel: money.FormatBRL(quote.TotalCents)})
	}
}

func AdminCouponList(svc couponAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]couponResponse, 0, len(rows))
		for _, c := range rows {
			out = append(out, newCouponResponse(c))
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminCouponCreate(svc couponAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input coupons.CreateCouponInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newCouponResponse(*coupon))
	}
}

type setCouponActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func AdminCouponSetActive(svc couponAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setCouponActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := coupons.NormalizeCode(chi.URLParam(r, "code"))
		if err := svc.SetActive(r.Context(), code, *req.IsActive); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"code": code, "is_active": *req.IsActive})
	}
}

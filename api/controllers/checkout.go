package controllers

import (
	"context"
	"net/http"

	"github.com/vitrine-commerce/vitrine-backend/api/middleware"
	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/internal/checkout"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

type checkoutService interface {
	Checkout(ctx context.Context, input checkout.CheckoutInput) (*checkout.Result, error)
}

type checkoutRequest struct {
	Email         string             `json:"email,omitempty" validate:"omitempty,email"`
	ShippingInfo  types.ShippingInfo `json:"shipping_info"`
	Channel       string             `json:"channel" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
	CouponCode    string             `json:"coupon_code,omitempty" validate:"max=40"`
}

// Checkout turns the session cart into an order and answers with the chat
// link that completes payment.
func Checkout(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := sessionActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		channel, err := enums.ParseHandoffChannel(req.Channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel"))
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		email := req.Email
		if email == "" {
			email = middleware.EmailFromContext(r.Context())
		}
		result, err := svc.Checkout(r.Context(), checkout.CheckoutInput{
			Actor:        actor,
			Email:        email,
			ShippingInfo: req.ShippingInfo,
			Channel:      channel,
			Method:       method,
			CouponCode:   req.CouponCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), result.Order.ID)
		logg.Info(ctx, "checkout.placed")
		responses.WriteCreated(w, result)
	}
}

package controllers

import (
	"context"
	"net/http"

	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/internal/cart"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

type cartService interface {
	Get(ctx context.Context, sessionID string) ([]cart.Line, error)
	Add(ctx context.Context, actor reservation.Actor, key cart.LineKey) (*cart.Line, error)
	Increment(ctx context.Context, actor reservation.Actor, key cart.LineKey) (*cart.Line, error)
	Decrement(ctx context.Context, actor reservation.Actor, key cart.LineKey) (*cart.Line, error)
	Remove(ctx context.Context, actor reservation.Actor, key cart.LineKey) error
	Clear(ctx context.Context, actor reservation.Actor) error
}

type cartView struct {
	Lines []cart.Line `json:"lines"`
	Units int         `json:"units"`
}

func newCartView(lines []cart.Line) cartView {
	if lines == nil {
		lines = []cart.Line{}
	}
	view := cartView{Lines: lines}
	for _, l := range lines {
		view.Units += l.Quantity
	}
	return view
}

func CartFetch(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := sessionActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := svc.Get(r.Context(), actor.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(lines))
	}
}

func CartAdd(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return cartStep(svc.Add, logg)
}

func CartIncrement(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return cartStep(svc.Increment, logg)
}

// CartDecrement answers with quantity 0 once the line is gone.
func CartDecrement(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return cartStep(svc.Decrement, logg)
}

func CartRemove(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, key, err := decodeCartKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Remove(r.Context(), actor, key); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func CartClear(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := sessionActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type cartStepFunc func(ctx context.Context, actor reservation.Actor, key cart.LineKey) (*cart.Line, error)

func cartStep(step cartStepFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, key, err := decodeCartKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		line, err := step(r.Context(), actor, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if line == nil {
			line = &cart.Line{ProductID: key.ProductID, Variant: key.Variant}
		}
		responses.WriteSuccess(w, line)
	}
}

func decodeCartKey(r *http.Request) (reservation.Actor, cart.LineKey, error) {
	actor, err := sessionActor(r)
	if err != nil {
		return actor, cart.LineKey{}, err
	}
	var key cart.LineKey
	if err := validators.DecodeJSONBody(r, &key); err != nil {
		return actor, cart.LineKey{}, err
	}
	return actor, key, nil
}

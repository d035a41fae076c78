package controllers

import (
	"net/http"

	"github.com/vitrine-commerce/vitrine-backend/api/middleware"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/pagination"
)

func sessionActor(r *http.Request) (reservation.Actor, error) {
	actor := middleware.ActorFromContext(r.Context())
	if actor.SessionID == "" {
		return actor, pkgerrors.New(pkgerrors.CodeValidation, "session id required").
			WithDetails(map[string]string{"header": middleware.SessionHeader})
	}
	return actor, nil
}

func requireUser(r *http.Request) (string, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}, nil
}

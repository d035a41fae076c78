package controllers

import (
	"context"
	"net/http"

	"github.com/vitrine-commerce/vitrine-backend/api/middleware"
	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	"github.com/vitrine-commerce/vitrine-backend/api/validators"
	"github.com/vitrine-commerce/vitrine-backend/internal/loyalty"
	"github.com/vitrine-commerce/vitrine-backend/internal/users"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

type userService interface {
	EnsureUser(ctx context.Context, identity users.Identity) (*users.UserDTO, error)
	Get(ctx context.Context, id string) (*users.UserDTO, error)
	UpdateProfile(ctx context.Context, id string, input users.UpdateProfileInput) (*users.UserDTO, error)
}

type loyaltyService interface {
	Reconcile(ctx context.Context, userID string) (*loyalty.Standing, error)
	History(ctx context.Context, userID string, limit int) ([]loyalty.HistoryEntry, error)
}

type sessionStartResponse struct {
	User     *users.UserDTO    `json:"user"`
	Standing *loyalty.Standing `json:"standing"`
}

// SessionStart runs on every sign-in: it creates the user row on first
// sight and recomputes tier and points from delivered orders.
func SessionStart(usersSvc userService, loyaltySvc loyaltyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := usersSvc.EnsureUser(r.Context(), users.Identity{
			UserID: userID,
			Email:  middleware.EmailFromContext(r.Context()),
			Name:   middleware.NameFromContext(r.Context()),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		standing, err := loyaltySvc.Reconcile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := usersSvc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionStartResponse{User: user, Standing: standing})
	}
}

func ProfileGet(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func ProfileUpdate(svc userService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input users.UpdateProfileInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.UpdateProfile(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func LoyaltyHistory(svc loyaltyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.History(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if entries == nil {
			entries = []loyalty.HistoryEntry{}
		}
		responses.WriteSuccess(w, entries)
	}
}

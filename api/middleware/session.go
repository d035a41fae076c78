package middleware

import (
	"net/http"
	"strings"

	"github.com/vitrine-commerce/vitrine-backend/api/responses"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

// SessionHeader carries the storefront's anonymous browser session id.
const SessionHeader = "X-Session-Id"

const maxSessionIDLen = 128

// Session reads the guest session id. Requests without one pass through; the
// handlers that need it reject them.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(sessionID) > maxSessionIDLen || strings.ContainsAny(sessionID, ": \t") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid session id"))
				return
			}
			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that carry no guest session id.
func RequireSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if SessionIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, SessionHeader+" header required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

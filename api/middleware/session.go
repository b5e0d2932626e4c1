package middleware

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// SessionReader exposes the active session.
type SessionReader interface {
	Current() *session.Session
}

// RequireSession rejects requests while no session is active and seeds the
// request context with the session user.
func RequireSession(sessions SessionReader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := sessions.Current()
			if !current.Valid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session"))
				return
			}

			ctx := WithUserID(r.Context(), current.User.ID)
			ctx = WithRole(ctx, string(current.User.Role))
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    current.User.ID,
					"actor_role": string(current.User.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

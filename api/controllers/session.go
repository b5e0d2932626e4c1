package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// SessionService is the slice of session.Manager the HTTP layer drives.
type SessionService interface {
	Current() *session.Session
	Admin() *session.Session
	Persisted() bool
	Login(ctx context.Context, sess session.Session) (bool, error)
	Logout(ctx context.Context)
	Forbidden(ctx context.Context)
}

type loginRequest struct {
	Token string        `json:"token"`
	User  *loginUserDTO `json:"user"`
}

type loginUserDTO struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	User      session.User `json:"user"`
	Admin     bool         `json:"admin"`
	Persisted bool         `json:"persisted"`
}

func parseBearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", errors.New(errors.CodeUnauthorized, "missing credentials")
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", errors.New(errors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

// SessionLogin installs a session from an OAuth token. When the body carries
// no user profile the token's claims supply it.
func SessionLogin(svc SessionService, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token := strings.TrimSpace(payload.Token)
		if token == "" {
			bearer, err := parseBearerToken(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeValidation, "token is required"))
				return
			}
			token = bearer
		}

		var sess session.Session
		if payload.User != nil {
			sess = session.Session{Token: token, User: payload.User.toUser()}
		} else {
			claims, err := auth.ParseSessionToken(cfg, token, time.Now())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeUnauthorized, err, "invalid token"))
				return
			}
			sess = session.FromClaims(token, claims)
		}

		persisted, err := svc.Login(r.Context(), sess)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			User:      sess.User,
			Admin:     sess.User.IsAdmin(),
			Persisted: persisted,
		})
	}
}

// SessionLogout is the auth:logout signal. The cart is already empty when
// the response is written.
func SessionLogout(svc SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Logout(r.Context())
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// SessionForbidden is the auth:forbidden signal raised on a 403.
func SessionForbidden(svc SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Forbidden(r.Context())
		responses.WriteSuccess(w, map[string]string{"status": "admin_cleared"})
	}
}

func SessionCurrent(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := svc.Current()
		if !current.Valid() {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeUnauthorized, "no active session"))
			return
		}
		responses.WriteSuccess(w, sessionResponse{
			User:      current.User,
			Admin:     svc.Admin().Valid(),
			Persisted: svc.Persisted(),
		})
	}
}

// SessionAdmin returns the admin profile. It sits behind RequireRole, so a
// missing admin session here means it was cleared by a forbidden signal.
func SessionAdmin(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin := svc.Admin()
		if !admin.Valid() {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeForbidden, "no admin session"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"user": admin.User})
	}
}

func (u loginUserDTO) toUser() session.User {
	role := session.Role(strings.ToLower(strings.TrimSpace(u.Role)))
	if role == "" {
		role = session.RoleCustomer
	}
	return session.User{
		ID:    validators.SanitizeString(u.ID, 128),
		Name:  validators.SanitizeString(u.Name, 256),
		Email: strings.TrimSpace(u.Email),
		Role:  role,
	}
}

package session

import (
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/pkg/auth"
)

// Role is the storefront role carried by a session user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the profile persisted alongside the bearer token.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the user may hold an admin session.
func (u User) IsAdmin() bool {
	return strings.EqualFold(string(u.Role), string(RoleAdmin))
}

// Session pairs the bearer token with the user it was issued to.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Valid reports whether the session carries a usable token.
func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.Token) != ""
}

// FromClaims builds a session from a decoded OAuth/JWT token.
func FromClaims(token string, claims *auth.SessionClaims) Session {
	sess := Session{Token: token}
	if claims == nil {
		return sess
	}
	role := Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	if role == "" {
		role = RoleCustomer
	}
	sess.User = User{
		ID:    claims.Identity(),
		Name:  claims.Name,
		Email: claims.Email,
		Role:  role,
	}
	return sess
}

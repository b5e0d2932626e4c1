package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// ErrMissingIdentity is returned when a token carries no user id or subject.
var ErrMissingIdentity = errors.New("token has no user identity")

// ParseSessionToken decodes a bearer token into its profile claims.
//
// With a configured secret the signature, issuer and expiry are verified.
// Without one the claims are decoded unverified; expiry is still enforced so
// an obviously dead token never becomes a session.
func ParseSessionToken(cfg config.JWTConfig, tokenString string, now time.Time) (*SessionClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("token is required")
	}

	claims := &SessionClaims{}
	if cfg.Secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("decode token: %w", err)
		}
		if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
			return nil, jwt.ErrTokenExpired
		}
	} else {
		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
			jwt.WithTimeFunc(func() time.Time { return now }),
		}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		_, err := jwt.ParseWithClaims(
			tokenString,
			claims,
			func(token *jwt.Token) (interface{}, error) {
				if token.Method != jwtSigningMethod {
					return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
				}
				return []byte(cfg.Secret), nil
			},
			opts...,
		)
		if err != nil {
			return nil, err
		}
	}

	if claims.Identity() == "" {
		return nil, ErrMissingIdentity
	}
	return claims, nil
}

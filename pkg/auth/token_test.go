package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseSessionTokenVerified(t *testing.T) {
	now := time.Now().UTC()
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	token := mintToken(t, "secret", SessionClaims{
		UserID: "u-1",
		Name:   "Ada",
		Email:  "ada@example.com",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "storefront",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	claims, err := ParseSessionToken(cfg, token, now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Identity() != "u-1" || claims.Role != "admin" || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseSessionTokenRejectsBadSignature(t *testing.T) {
	now := time.Now().UTC()
	token := mintToken(t, "other", SessionClaims{UserID: "u-1"})
	if _, err := ParseSessionToken(config.JWTConfig{Secret: "secret"}, token, now); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestParseSessionTokenUnverifiedUsesSubject(t *testing.T) {
	now := time.Now().UTC()
	token := mintToken(t, "whatever", SessionClaims{
		Name:             "Grace",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-9"},
	})

	claims, err := ParseSessionToken(config.JWTConfig{}, token, now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Identity() != "u-9" {
		t.Fatalf("expected subject fallback, got %q", claims.Identity())
	}
}

func TestParseSessionTokenUnverifiedRejectsExpired(t *testing.T) {
	now := time.Now().UTC()
	token := mintToken(t, "whatever", SessionClaims{
		UserID:           "u-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))},
	})
	if _, err := ParseSessionToken(config.JWTConfig{}, token, now); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseSessionTokenRequiresIdentity(t *testing.T) {
	token := mintToken(t, "whatever", SessionClaims{Name: "nobody"})
	if _, err := ParseSessionToken(config.JWTConfig{}, token, time.Now()); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}

package auth

import (
	"context"
	"testing"
	"time"

	"casino-platform/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, Principal{UserID: "user-1", Email: "p@example.com", Role: "player"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "p@example.com" || claims.Role != "player" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), Principal{UserID: "u", Role: "r"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, Principal{UserID: "u", Role: "r"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestPrincipalFrom(t *testing.T) {
	if _, err := PrincipalFrom(context.Background()); err != ErrNoPrincipal {
		t.Fatalf("expected ErrNoPrincipal, got %v", err)
	}
	ctx := WithPrincipal(context.Background(), Principal{UserID: "u", Email: "e", Role: "admin"})
	p, err := PrincipalFrom(ctx)
	if err != nil || p.Email != "e" {
		t.Fatalf("unexpected principal %+v err=%v", p, err)
	}
	if r, _ := Role(ctx); r != "admin" {
		t.Fatalf("expected admin role, got %q", r)
	}
}

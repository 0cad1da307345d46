package auth

import (
	"testing"
	"time"

	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "boost",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseIdentityToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	role := enums.UserRoleStaff
	merchantID := "2b1d9c1e-7f34-4a51-9c1f-5f0c2e6b7a10"

	token, err := MintIdentityToken(cfg, now, IdentityPayload{
		UID:        "uid-123",
		Email:      " Staff@Example.com ",
		Role:       &role,
		MerchantID: &merchantID,
	})
	if err != nil {
		t.Fatalf("mint identity token: %v", err)
	}

	claims, err := ParseIdentityToken(cfg, token)
	if err != nil {
		t.Fatalf("parse identity token: %v", err)
	}

	if claims.UID() != "uid-123" {
		t.Fatalf("expected uid-123, got %s", claims.UID())
	}
	if claims.Email != "staff@example.com" {
		t.Fatalf("email should be normalized, got %q", claims.Email)
	}
	if claims.Role == nil || *claims.Role != enums.UserRoleStaff {
		t.Fatalf("role claim not preserved")
	}
	if claims.MerchantID == nil || *claims.MerchantID != merchantID {
		t.Fatalf("merchant claim not preserved")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(now) {
		t.Fatalf("expected expiry in the future")
	}
}

func TestParseIdentityTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintIdentityToken(cfg, time.Now(), IdentityPayload{UID: "uid-1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseIdentityToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestParseIdentityTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintIdentityToken(cfg, time.Now().Add(-2*time.Hour), IdentityPayload{UID: "uid-1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseIdentityToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseIdentityTokenRejectsOtherAlgorithms(t *testing.T) {
	cfg := testJWTConfig()
	claims := IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "uid-1",
		Issuer:    cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseIdentityToken(cfg, token); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestMintIdentityTokenValidatesInput(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintIdentityToken(cfg, time.Now(), IdentityPayload{}); err == nil {
		t.Fatal("expected missing uid error")
	}
	bad := enums.UserRole("root")
	if _, err := MintIdentityToken(cfg, time.Now(), IdentityPayload{UID: "u", Role: &bad}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintIdentityToken(config.JWTConfig{}, time.Now(), IdentityPayload{UID: "u"}); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]bool{
		"Bearer abc": true,
		"bearer abc": true,
		"abc":        false,
		"":           false,
		"Basic abc":  false,
		"Bearer a b": false,
	}
	for header, ok := range cases {
		token, err := BearerToken(header)
		if ok && (err != nil || token != "abc") {
			t.Fatalf("header %q: expected token abc, got %q err=%v", header, token, err)
		}
		if !ok && err == nil {
			t.Fatalf("header %q: expected error", header)
		}
	}
}

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/boostlocal/boost-api/pkg/config"
)

// Verifier checks a bearer identity token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*IdentityClaims, error)
}

// HMACVerifier checks HS256 tokens signed with the shared secret.
type HMACVerifier struct {
	cfg config.JWTConfig
}

// NewHMACVerifier wraps ParseIdentityToken.
func NewHMACVerifier(cfg config.JWTConfig) *HMACVerifier {
	return &HMACVerifier{cfg: cfg}
}

func (v *HMACVerifier) Verify(_ context.Context, token string) (*IdentityClaims, error) {
	return ParseIdentityToken(v.cfg, token)
}

// NewVerifier picks the verifier for cfg.Mode. A nil client uses a default
// with a short timeout.
func NewVerifier(cfg config.JWTConfig, client *http.Client) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", config.JWTModeHMAC:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("jwt secret is required")
		}
		return NewHMACVerifier(cfg), nil
	case config.JWTModeJWKS:
		return NewJWKSVerifier(cfg, client)
	default:
		return nil, fmt.Errorf("unknown jwt mode %q", cfg.Mode)
	}
}

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boostlocal/boost-api/pkg/config"
)

const (
	defaultJWKSRefresh = time.Hour
	jwksRefetchFloor   = time.Minute
	jwksFetchTimeout   = 10 * time.Second
)

// ErrUnknownSigningKey means the token names a kid the key set does not carry.
var ErrUnknownSigningKey = errors.New("unknown signing key")

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

// JWKSVerifier checks RS256 tokens from an external identity provider
// against its published key set. Keys are cached and refetched when stale or
// when a token names a kid not seen yet.
type JWKSVerifier struct {
	url      string
	issuer   string
	audience string
	refresh  time.Duration
	client   *http.Client
	now      func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// NewJWKSVerifier builds a verifier for cfg.JWKSURL.
func NewJWKSVerifier(cfg config.JWTConfig, client *http.Client) (*JWKSVerifier, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("jwt issuer is required")
	}
	if client == nil {
		client = &http.Client{Timeout: jwksFetchTimeout}
	}
	refresh := cfg.JWKSRefresh
	if refresh <= 0 {
		refresh = defaultJWKSRefresh
	}
	return &JWKSVerifier{
		url:      cfg.JWKSURL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		refresh:  refresh,
		client:   client,
		now:      time.Now,
		keys:     map[string]*rsa.PublicKey{},
	}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*IdentityClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no key id")
		}
		return v.key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token subject is required")
	}
	return claims, nil
}

func (v *JWKSVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := v.now()
	v.mu.RLock()
	key, ok := v.keys[kid]
	never := v.fetched.IsZero()
	age := now.Sub(v.fetched)
	v.mu.RUnlock()

	if ok && age < v.refresh {
		return key, nil
	}
	if !ok && !never && age < jwksRefetchFloor {
		return nil, fmt.Errorf("%w %q", ErrUnknownSigningKey, kid)
	}
	if err := v.fetch(ctx); err != nil {
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownSigningKey, kid)
}

func (v *JWKSVerifier) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set jsonWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" || jwk.Kid == "" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := rsaKey(jwk)
		if err != nil {
			return fmt.Errorf("jwks key %q: %w", jwk.Kid, err)
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("jwks carries no rsa signing keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetched = v.now()
	v.mu.Unlock()
	return nil
}

func rsaKey(jwk jsonWebKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if len(n) == 0 || !exp.IsInt64() || exp.Int64() < 3 {
		return nil, fmt.Errorf("invalid rsa parameters")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}

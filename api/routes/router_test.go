package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/internal/redemptions"
	"github.com/boostlocal/boost-api/internal/tokens"
	"github.com/boostlocal/boost-api/internal/users"
	pkgAuth "github.com/boostlocal/boost-api/pkg/auth"
	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubUsers struct {
	users.Service
	bindings map[string]users.Binding
}

func (s stubUsers) Resolve(_ context.Context, identity users.Identity) (users.Binding, error) {
	if b, ok := s.bindings[identity.UID]; ok {
		return b, nil
	}
	return users.Binding{UID: identity.UID}, nil
}

func (s stubUsers) List(context.Context, access.Actor, *uuid.UUID, pagination.Params) (*users.ListResult, error) {
	return &users.ListResult{Users: []users.UserDTO{}, Pending: []users.PendingRoleDTO{}}, nil
}

type stubTokens struct {
	tokens.Service
}

func (stubTokens) PublicOffer(_ context.Context, raw string) (*tokens.PublicOfferDTO, error) {
	return &tokens.PublicOfferDTO{ShortCode: strings.ToUpper(raw), OfferName: "Free Coffee"}, nil
}

type stubRedemptions struct {
	redemptions.Service
}

func (stubRedemptions) Redeem(_ context.Context, actor access.Actor, _ redemptions.RedeemInput) (*redemptions.RedeemResult, error) {
	if !actor.HasRole() {
		return nil, nil
	}
	return &redemptions.RedeemResult{Success: true, Outcome: redemptions.OutcomeSuccess, Message: "Redemption successful!"}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "boost-test", ExpirationMinutes: 60}
	cfg.CORS.Origins = []string{"https://app.boost.test"}
	cfg.RateLimit = config.RateLimitConfig{Window: time.Minute, DefaultLimit: 60, RedeemLimit: 10, IdempotencyTTL: time.Hour}
	return cfg
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	owner := enums.UserRoleOwner
	staff := enums.UserRoleStaff
	merchantID := uuid.New()
	svc := Services{
		Users: stubUsers{bindings: map[string]users.Binding{
			"owner-1": {UID: "owner-1", Role: &owner, IsPrimary: true},
			"staff-1": {UID: "staff-1", Role: &staff, MerchantID: &merchantID},
		}},
		Tokens:      stubTokens{},
		Redemptions: stubRedemptions{},
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	logg := logger.New(logger.Options{ServiceName: "router-test", Level: logger.ParseLevel("error"), Output: io.Discard})
	return NewRouter(cfg, logg, stubPinger{}, nil, metrics, svc), cfg
}

func bearer(t *testing.T, cfg *config.Config, uid string) string {
	t.Helper()
	token, err := pkgAuth.MintIdentityToken(cfg.JWT, time.Now(), pkgAuth.IdentityPayload{UID: uid, Email: uid + "@example.com"})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuthenticatedRoutesRejectMissingJWT(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/offers"},
		{http.MethodPost, "/redeem"},
		{http.MethodGet, "/ledger"},
		{http.MethodPost, "/auth/claim-role"},
		{http.MethodGet, "/admin/users"},
		{http.MethodDelete, "/merchants/" + uuid.NewString()},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestPublicOfferNeedsNoJWT(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/offers/abc234", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"short_code":"ABC234"`)
}

func TestAdminRoutesRequireOwnerOrAdmin(t *testing.T) {
	router, cfg := newTestRouter(t)

	staff := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	staff.Header.Set("Authorization", bearer(t, cfg, "staff-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, staff)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	unbound := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	unbound.Header.Set("Authorization", bearer(t, cfg, "stranger"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, unbound)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	owner.Header.Set("Authorization", bearer(t, cfg, "owner-1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, owner)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedeemRouteUsesStoredBinding(t *testing.T) {
	router, cfg := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/redeem", strings.NewReader(`{"token":"ABC234","location":"Main St","method":"scan"}`))
	req.Header.Set("Authorization", bearer(t, cfg, "staff-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestCORSPreflightAllowsConfiguredOrigin(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/offers", nil)
	req.Header.Set("Origin", "https://app.boost.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.boost.test", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodOptions, "/offers", nil)
	other.Header.Set("Origin", "https://evil.test")
	other.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, other)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

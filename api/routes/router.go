package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/boostlocal/boost-api/api/controllers"
	"github.com/boostlocal/boost-api/api/middleware"
	"github.com/boostlocal/boost-api/internal/ledger"
	"github.com/boostlocal/boost-api/internal/merchants"
	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/internal/redemptions"
	"github.com/boostlocal/boost-api/internal/tokens"
	"github.com/boostlocal/boost-api/internal/users"
	pkgAuth "github.com/boostlocal/boost-api/pkg/auth"
	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/db"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/redis"
)

// Services are the domain services exposed over HTTP.
type Services struct {
	Merchants   merchants.Service
	Offers      offers.Service
	Tokens      tokens.Service
	Redemptions redemptions.Service
	Ledger      ledger.Service
	Users       users.Service
	Identity    pkgAuth.Verifier
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins()),
	)

	limiter, idempotency := redisStores(redisClient)
	redeemPolicy := middleware.NewRateLimitPolicy("redeem", cfg.RateLimit.Window, cfg.RateLimit.RedeemLimit)
	defaultPolicy := middleware.NewRateLimitPolicy("default", cfg.RateLimit.Window, cfg.RateLimit.DefaultLimit)

	verifier := svc.Identity
	if verifier == nil {
		verifier = pkgAuth.NewHMACVerifier(cfg.JWT)
	}
	authenticate := middleware.Auth(verifier, svc.Users, logg)
	replay := middleware.Idempotency(idempotency, cfg.RateLimit.IdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.Health(cfg))
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(dbP, redisClient)))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(redeemPolicy, limiter, logg))
		r.Use(authenticate)
		r.Use(replay)
		r.Post("/redeem", controllers.Redeem(svc.Redemptions, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(defaultPolicy, limiter, logg))

		r.Get("/public/offers/{ref}", controllers.PublicOffer(svc.Tokens, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(replay)

			r.Post("/auth/claim-role", controllers.ClaimRole(svc.Users, logg))

			r.Get("/redemptions", controllers.RedemptionList(svc.Redemptions, logg))

			r.Get("/offers", controllers.OfferList(svc.Offers, logg))
			r.Post("/offers", controllers.OfferCreate(svc.Offers, logg))
			r.Get("/offers/{id}", controllers.OfferGet(svc.Offers, logg))
			r.Patch("/offers/{id}", controllers.OfferUpdate(svc.Offers, logg))
			r.Delete("/offers/{id}", controllers.OfferDelete(svc.Offers, logg))
			r.Post("/offers/{id}/tokens", controllers.TokenGenerate(svc.Tokens, logg))
			r.Post("/offers/{id}/tokens/single-use", controllers.TokenIssueSingleUse(svc.Tokens, logg))
			r.Get("/offers/{id}/tokens", controllers.TokenList(svc.Tokens, logg))
			r.Get("/tokens/{id}/qr", controllers.TokenQR(svc.Tokens, logg))

			r.Get("/ledger", controllers.LedgerSummary(svc.Ledger, logg))
			r.Get("/ledger/export", controllers.LedgerExport(svc.Ledger, logg))

			r.Get("/merchants", controllers.MerchantList(svc.Merchants, logg))
			r.Post("/merchants", controllers.MerchantCreate(svc.Merchants, logg))
			r.Get("/merchants/{id}", controllers.MerchantGet(svc.Merchants, logg))
			r.Patch("/merchants/{id}", controllers.MerchantUpdate(svc.Merchants, logg))
			r.Delete("/merchants/{id}", controllers.MerchantDelete(svc.Merchants, logg))
			r.Patch("/merchants/{id}/restore", controllers.MerchantRestore(svc.Merchants, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleOwner, enums.UserRoleMerchantAdmin))
				r.Post("/admin/users", controllers.AdminUserInvite(svc.Users, logg))
				r.Get("/admin/users", controllers.AdminUserList(svc.Users, logg))
				r.Delete("/admin/users/{uid}", controllers.AdminUserDelete(svc.Users, logg))
			})
		})
	})

	return r
}

// A nil client disables rate limiting and idempotent replay.
func redisStores(client *redis.Client) (middleware.RateLimitStore, redis.IdempotencyStore) {
	if client == nil {
		return nil, nil
	}
	return client, client
}

func readinessDeps(dbP db.Pinger, redisClient *redis.Client) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}
	return deps
}

// Package app assembles the domain services shared by the binaries.
package app

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/boostlocal/boost-api/api/routes"
	"github.com/boostlocal/boost-api/internal/ledger"
	"github.com/boostlocal/boost-api/internal/merchants"
	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/internal/redemptions"
	"github.com/boostlocal/boost-api/internal/tokens"
	"github.com/boostlocal/boost-api/internal/users"
	"github.com/boostlocal/boost-api/pkg/auth"
	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/db"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/metrics"
	"github.com/boostlocal/boost-api/pkg/outbox"
	"github.com/boostlocal/boost-api/pkg/redis"
)

// Params carries the infrastructure the services are built on.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Registry prometheus.Registerer
	Now      func() time.Time
}

// Repositories exposes the stores background jobs operate on directly.
type Repositories struct {
	Merchants *merchants.Repository
	Offers    *offers.Repository
	Tokens    *tokens.Repository
	Users     *users.Repository
	Pending   *users.PendingRepository
	Outbox    *outbox.Repository
	Ledger    ledger.Repository
}

// Components is the assembled domain layer.
type Components struct {
	Repos       Repositories
	Bindings    *users.BindingCache
	Outbox      *outbox.Service
	Merchants   merchants.Service
	Offers      offers.Service
	Tokens      tokens.Service
	Redemptions redemptions.Service
	Ledger      ledger.Service
	Users       users.Service
	Identity    auth.Verifier
}

// Routes returns the services the HTTP router serves.
func (c *Components) Routes() routes.Services {
	return routes.Services{
		Merchants:   c.Merchants,
		Offers:      c.Offers,
		Tokens:      c.Tokens,
		Redemptions: c.Redemptions,
		Ledger:      c.Ledger,
		Users:       c.Users,
		Identity:    c.Identity,
	}
}

// Build wires repositories and services.
func Build(params Params) (*Components, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	cfg := params.Config
	logg := params.Logger

	loc, err := time.LoadLocation(cfg.App.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("load default timezone: %w", err)
	}

	conn := params.DB.DB()
	repos := Repositories{
		Merchants: merchants.NewRepository(conn),
		Offers:    offers.NewRepository(conn),
		Tokens:    tokens.NewRepository(conn),
		Users:     users.NewRepository(conn),
		Pending:   users.NewPendingRepository(conn),
		Outbox:    outbox.NewRepository(conn),
		Ledger:    ledger.NewRepository(conn),
	}

	var bindings *users.BindingCache
	if params.Redis != nil {
		bindings = users.NewBindingCache(params.Redis, cfg.JWT.BindingCacheTTL, logg)
	}
	clock := params.Now
	if clock == nil {
		clock = time.Now
	}
	outboxSvc := outbox.NewService(repos.Outbox, logg, outbox.WithClock(clock))

	merchantSvc, err := merchants.NewService(merchants.ServiceParams{
		Repo: repos.Merchants,
		DB:   params.DB,
		Cascade: merchants.Cascade{
			Users:   repos.Users,
			Offers:  repos.Offers,
			Tokens:  repos.Tokens,
			Invites: repos.Pending,
		},
		Bindings:        bindingInvalidator(bindings),
		Outbox:          outboxSvc,
		Logger:          logg,
		DefaultTimezone: cfg.App.DefaultTimezone,
		Now:             params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("merchants service: %w", err)
	}

	offerSvc, err := offers.NewService(offers.ServiceParams{
		Repo:            repos.Offers,
		Merchants:       repos.Merchants,
		Tokens:          repos.Tokens,
		DB:              params.DB,
		Outbox:          outboxSvc,
		Logger:          logg,
		DefaultLocation: loc,
		Now:             params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("offers service: %w", err)
	}

	tokenSvc, err := tokens.NewService(tokens.ServiceParams{
		Repo:            repos.Tokens,
		Offers:          repos.Offers,
		Merchants:       repos.Merchants,
		DB:              params.DB,
		Logger:          logg,
		PublicBaseURL:   cfg.App.PublicBaseURL,
		QRSize:          cfg.Tokens.QRSize,
		ExpiresDays:     cfg.Tokens.DefaultExpiresDays,
		DefaultLocation: loc,
		Now:             params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("tokens service: %w", err)
	}

	redemptionSvc, err := redemptions.NewService(redemptions.ServiceParams{
		Repo:            redemptions.NewRepository(conn),
		Tokens:          repos.Tokens,
		Offers:          repos.Offers,
		Merchants:       repos.Merchants,
		DB:              params.DB,
		Outbox:          outboxSvc,
		Metrics:         metrics.NewRedemptionMetrics(params.Registry),
		Logger:          logg,
		DefaultLocation: loc,
		Now:             params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("redemptions service: %w", err)
	}

	ledgerSvc, err := ledger.NewService(repos.Ledger, repos.Offers, logg, params.Now)
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWT, nil)
	if err != nil {
		return nil, fmt.Errorf("identity verifier: %w", err)
	}
	var mint users.TokenMinter
	if jwtCfg := cfg.JWT; jwtCfg.CanMint() {
		mint = func(payload auth.IdentityPayload) (string, error) {
			return auth.MintIdentityToken(jwtCfg, clock(), payload)
		}
	}
	userSvc, err := users.NewService(users.ServiceParams{
		Users:     repos.Users,
		Pending:   repos.Pending,
		Merchants: repos.Merchants,
		DB:        params.DB,
		Bindings:  bindings,
		Mint:      mint,
		Logger:    logg,
		InviteTTL: cfg.Invites.TTL,
		Now:       params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}

	return &Components{
		Repos:       repos,
		Bindings:    bindings,
		Outbox:      outboxSvc,
		Merchants:   merchantSvc,
		Offers:      offerSvc,
		Tokens:      tokenSvc,
		Redemptions: redemptionSvc,
		Ledger:      ledgerSvc,
		Users:       userSvc,
		Identity:    verifier,
	}, nil
}

// bindingInvalidator keeps a nil cache from becoming a non-nil interface.
func bindingInvalidator(cache *users.BindingCache) merchants.BindingInvalidator {
	if cache == nil {
		return nil
	}
	return cache
}

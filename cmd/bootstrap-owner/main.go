package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/boostlocal/boost-api/internal/app"
	"github.com/boostlocal/boost-api/internal/users"
	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/db"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/redis"
)

// bootstrap-owner promotes an identity to the single primary owner. It is
// the only way to create the first owner of a fresh deployment.
func main() {
	uid := flag.String("uid", "", "identity subject to promote")
	email := flag.String("email", "", "email of the identity")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "bootstrap-owner"})
	_ = godotenv.Load()

	if *uid == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "usage: bootstrap-owner -uid <subject> -email <address>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "bootstrap-owner",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Environment: cfg.App.Env,
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(logg, "database", err)
	defer dbClient.Close()

	// Without redis the cached binding of uid simply ages out.
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Warn(ctx, "redis unavailable, cached role binding will expire on its own")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	components, err := app.Build(app.Params{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
	})
	requireResource(logg, "services", err)

	owner, err := components.Users.BootstrapOwner(ctx, users.Identity{UID: *uid, Email: *email})
	if err != nil {
		logg.Error(ctx, "bootstrap owner failed", err)
		os.Exit(1)
	}
	fmt.Printf("primary owner: %s <%s>\n", owner.UID, owner.Email)
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("failed to initialize %s", name), err)
	os.Exit(1)
}

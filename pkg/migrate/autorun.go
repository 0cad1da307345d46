package migrate

import (
	"context"
	"fmt"

	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/db"
	"github.com/boostlocal/boost-api/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on start-up in dev when
// BOOST_AUTO_MIGRATE is set. SQLite databases are skipped; tests build their
// schema with AutoMigrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.FeatureFlags.UseSQLite || cfg.DB.Driver == "sqlite" {
		logg.Warn(ctx, "auto-migrate skipped for sqlite")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "applying embedded migrations")
	if err := Up(ctx, sqlDB, ""); err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}

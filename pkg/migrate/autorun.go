package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

// ErrSQLiteUnsupported is returned for goose commands other than up on a
// SQLite database.
var ErrSQLiteUnsupported = errors.New("only schema sync is supported on sqlite")

// Up brings the schema to the latest version. Postgres runs the goose
// migrations in dir; SQLite is synced from the models since the SQL files use
// Postgres-only syntax.
func Up(ctx context.Context, client *db.Client, dir string) error {
	if client.Dialect() == db.DialectSQLite {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite schema sync: %w", err)
		}
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}
	return Run(ctx, sqlDB, dir, "up")
}

// MaybeRunDev applies migrations at boot in dev when VITRINE_AUTO_MIGRATE is
// set. Other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"dialect": client.Dialect(), "dir": DefaultDir})
	if err := Up(ctx, client, DefaultDir); err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	logg.Info(ctx, "schema up to date")
	return nil
}

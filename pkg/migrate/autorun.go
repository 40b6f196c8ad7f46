package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/db"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

// Startup applies the embedded migrations in dev when auto-migrate is on.
// Elsewhere it only logs schema drift; deploys run cmd/migrate explicitly.
func Startup(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := New(sqlDB, "")
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate {
		logg.Info(ctx, "applying embedded migrations")
		if err := m.Run(ctx, "up"); err != nil {
			return fmt.Errorf("running goose up: %w", err)
		}
		return nil
	}

	state, err := m.State(ctx)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "schema version check failed")
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"schema_version": state.Current, "latest_migration": state.Latest})
	switch {
	case state.Behind():
		logg.Warn(ctx, "database schema is behind this build")
	case state.Ahead():
		logg.Warn(ctx, "database schema is ahead of this build")
	default:
		logg.Debug(ctx, "database schema up to date")
	}
	return nil
}

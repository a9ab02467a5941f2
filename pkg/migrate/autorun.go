package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on start-up in dev when the
// auto-migrate flag is on. Every other environment runs cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := NewMigrator(sqlDB, client.Dialect(), Embedded())
	if err != nil {
		return err
	}
	applied, err := m.Run(ctx, "up", "")
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"dialect": client.Dialect(), "applied": applied}), "dev migrations applied")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"trivia-progression-service/internal/catalog"
	"trivia-progression-service/internal/config"
	"trivia-progression-service/internal/infra/postgres"
	infraredis "trivia-progression-service/internal/infra/redis"
)

// NewSeedCmd publishes a catalog file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load questions, rewards and the day schedule from a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if catalogPath != "" {
				cfg.Catalog.Path = catalogPath
			}
			logger := newLogger(cfg)
			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			return seedCatalog(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog file (defaults to catalog.path from config)")
	return cmd
}

func seedCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Catalog.Path == "" {
		return fmt.Errorf("catalog path not configured")
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := postgres.NewSeeder(db).Seed(ctx, cat.Questions, cat.Rewards, cat.Schedule)
	if err != nil {
		return err
	}
	logger.Info("catalog seeded",
		"path", cfg.Catalog.Path,
		"questions", res.Questions,
		"rewards", res.Rewards,
		"assignments", res.Assignments,
	)
	invalidateCatalogCache(ctx, cfg, logger)
	return nil
}

// invalidateCatalogCache drops the shared Redis copy of the catalog so running
// instances pick up newly seeded questions on their next read.
func invalidateCatalogCache(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	if cfg.Redis.Addr == "" {
		return
	}
	client := newRedisClient(cfg)
	defer client.Close()

	repo := infraredis.NewCatalogRepository(client, nil, 0, logger)
	if err := repo.Invalidate(ctx); err != nil {
		logger.Warn("catalog cache invalidation failed", "err", err)
		return
	}
	logger.Info("catalog cache invalidated")
}

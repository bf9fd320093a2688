// Package bootstrap opens the backends shared by the server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"lexdraft-backend/catalog"
	"lexdraft-backend/config"
	"lexdraft-backend/repository"
	"lexdraft-backend/repository/postgres"
	"lexdraft-backend/repository/sqlite"
	"lexdraft-backend/search"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env from the working directory, then from the project root
// when running from cmd/<name>/.
func LoadEnv(logger *slog.Logger) {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			logger.Debug("no .env file found, using environment variables")
		}
	}
}

// OpenStore connects the configured store driver and applies its schema.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repository.Store, error) {
	switch cfg.StoreDriver {
	case "postgres", "":
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.ApplySchema(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("postgres store ready")
		return postgres.NewStore(pool, logger), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store ready", "path", cfg.SQLitePath)
		return sqlite.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}

// SeedCatalog upserts the embedded template catalog.
func SeedCatalog(ctx context.Context, store *repository.Store, logger *slog.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, err
	}
	n, err := cat.Seed(ctx, store.Templates, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("template catalog seeded", "templates", n)
	return cat, nil
}

// NewSearch builds the search service, backed by Meilisearch when configured.
// The returned close func stops the index health loop.
func NewSearch(cfg *config.Config, store *repository.Store, logger *slog.Logger) (*search.Service, func()) {
	if cfg.MeiliURL == "" {
		return search.NewService(nil, store.Pieces, logger), func() {}
	}
	m := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	return search.NewService(m, store.Pieces, logger), m.Close
}

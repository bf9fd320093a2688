package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"lexdraft-backend/bootstrap"
	"lexdraft-backend/config"
	"lexdraft-backend/repository"

	"github.com/spf13/cobra"
)

var storeDriver string

var rootCmd = &cobra.Command{
	Use:           "lexdraftctl",
	Short:         "Operator tasks for the lexdraft backend",
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Store driver override: postgres or sqlite (default: $STORE_DRIVER)")
}

// env loads configuration the same way the server does
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *repository.Store
}

func openEnv(ctx context.Context) (*env, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	bootstrap.LoadEnv(logger)

	cfg := config.Load()
	if storeDriver != "" {
		cfg.StoreDriver = storeDriver
	}
	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) Close() {
	e.store.Close()
}

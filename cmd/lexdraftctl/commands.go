package main

import (
	"errors"
	"fmt"
	"time"

	"lexdraft-backend/auth"
	"lexdraft-backend/bootstrap"
	"lexdraft-backend/models"
	"lexdraft-backend/service"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	rootCmd.AddCommand(schemaCmd(), seedCmd(), createUserCmd(), sweepCmd(), reindexCmd())
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the store applies the schema
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema applied\n", e.cfg.StoreDriver)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the embedded template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := bootstrap.SeedCatalog(cmd.Context(), e.store, e.logger); err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "template catalog seeded")
			return nil
		},
	}
}

func createUserCmd() *cobra.Command {
	var (
		name     string
		password string
		tokenTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create-user <email>",
		Short: "Create a user and print a bearer token for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			email := args[0]
			user, err := e.store.Users.GetByEmail(ctx, email)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists (ID: %s)\n", email, user.ID)
			case errors.Is(err, models.ErrNotFound):
				user = &models.User{Email: email, Name: name}
				if password != "" {
					hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
					if err != nil {
						return fmt.Errorf("hash password: %w", err)
					}
					user.PasswordHash = string(hash)
				}
				if err := e.store.Users.Create(ctx, user); err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user created (ID: %s)\n", user.ID)
			default:
				return fmt.Errorf("look up user: %w", err)
			}

			if e.cfg.AuthJWTSecret == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "AUTH_JWT_SECRET not set, no token issued")
				return nil
			}
			token, err := auth.IssueHMAC([]byte(e.cfg.AuthJWTSecret), user.ID, user.Email, tokenTTL)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password, stored as a bcrypt hash")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of the printed token")
	return cmd
}

func sweepCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail pending suggestions whose stream was abandoned",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if olderThan == 0 {
				olderThan = e.cfg.SuggestionStaleAfter
			}
			suggestions := service.NewSuggestionService(
				service.SuggestionWithSuggestionRepository(e.store.Suggestions),
				service.SuggestionWithLogger(e.logger),
			)
			n, err := suggestions.SweepStaleSuggestions(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d suggestions marked failed\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age of pending suggestions to fail (default: $SUGGESTION_STALE_AFTER)")
	return cmd
}

func reindexCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Push every piece to the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if e.cfg.MeiliURL == "" {
				return errors.New("MEILI_URL is not set")
			}
			searcher, closeSearch := bootstrap.NewSearch(e.cfg, e.store, e.logger)
			defer closeSearch()

			n, err := searcher.Reindex(cmd.Context(), batchSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pieces indexed\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Pieces per index request")
	return cmd
}

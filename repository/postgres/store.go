package postgres

import (
	"context"
	"log/slog"

	"lexdraft-backend/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewStore wires every PostgreSQL repository around one pool
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *repository.Store {
	return &repository.Store{
		Templates:   NewTemplateRepository(pool),
		Users:       NewUserRepository(pool),
		Pieces:      NewPieceRepository(pool),
		Versions:    NewVersionRepository(pool),
		Suggestions: NewSuggestionRepository(pool),
		Jobs:        NewGenerationJobRepository(pool),
		Exports:     NewExportRepository(pool),
		Tx:          NewTransactionManager(pool, logger),
		Ping:        func(ctx context.Context) error { return pool.Ping(ctx) },
		Close:       pool.Close,
	}
}

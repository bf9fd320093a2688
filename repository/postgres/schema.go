package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

type schemaStatement struct {
	name string
	sql  string
}

var schema = []schemaStatement{
	{
		name: "users table",
		sql: `CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		name: "templates table",
		sql: `CREATE TABLE IF NOT EXISTS templates (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    catalog_key TEXT UNIQUE,
    title TEXT NOT NULL,
    category TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tags JSONB NOT NULL DEFAULT '[]'::jsonb,
    is_popular BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		name: "pieces table",
		sql: `CREATE TABLE IF NOT EXISTS pieces (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    template_id UUID NOT NULL REFERENCES templates(id),
    title TEXT,
    content_json JSONB,
    inputs_json JSONB,
    theses_json JSONB,
    juris_json JSONB,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'generating', 'completed')),
    revision INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
)`,
	},
	{
		name: "piece_versions table",
		sql: `CREATE TABLE IF NOT EXISTS piece_versions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    piece_id UUID NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
    content_json JSONB,
    change_reason TEXT NOT NULL CHECK (change_reason IN ('manual', 'ai_suggestion', 'export', 'validation')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
)`,
	},
	{
		name: "ai_suggestions table",
		sql: `CREATE TABLE IF NOT EXISTS ai_suggestions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    piece_id UUID NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
    action_type TEXT NOT NULL CHECK (action_type IN ('rewrite', 'formalize', 'reduce', 'cohesion', 'fundamentation')),
    selection_from INTEGER,
    selection_to INTEGER,
    original_text TEXT NOT NULL,
    suggested_text TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected', 'failed')),
    piece_version_id UUID REFERENCES piece_versions(id) ON DELETE SET NULL,
    error_message TEXT,
    revision INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    generated_at TIMESTAMPTZ
)`,
	},
	{
		name: "ai_suggestions generated_at",
		sql:  "ALTER TABLE ai_suggestions ADD COLUMN IF NOT EXISTS generated_at TIMESTAMPTZ",
	},
	{
		name: "generation_jobs table",
		sql: `CREATE TABLE IF NOT EXISTS generation_jobs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    piece_id UUID NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
    status TEXT NOT NULL DEFAULT 'pending',
    current_step TEXT,
    steps JSONB NOT NULL DEFAULT '[]'::jsonb,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    completed_at TIMESTAMPTZ
)`,
	},
	{
		name: "exports table",
		sql: `CREATE TABLE IF NOT EXISTS exports (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    piece_id UUID NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
    piece_version_id UUID REFERENCES piece_versions(id) ON DELETE SET NULL,
    format TEXT NOT NULL CHECK (format IN ('html', 'pdf')),
    filename TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    size BIGINT NOT NULL DEFAULT 0,
    storage_path TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
)`,
	},
	{
		name: "templates by category",
		sql:  "CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category, title)",
	},
	{
		name: "pieces by owner and recency",
		sql:  "CREATE INDEX IF NOT EXISTS idx_pieces_user_created ON pieces(user_id, created_at DESC, id DESC)",
	},
	{
		name: "pieces by recency",
		sql:  "CREATE INDEX IF NOT EXISTS idx_pieces_created ON pieces(created_at DESC, id DESC)",
	},
	{
		name: "versions by piece and recency",
		sql:  "CREATE INDEX IF NOT EXISTS idx_piece_versions_piece_created ON piece_versions(piece_id, created_at DESC, id DESC)",
	},
	{
		name: "pending suggestions by age",
		sql:  "CREATE INDEX IF NOT EXISTS idx_ai_suggestions_ungenerated ON ai_suggestions(created_at) WHERE status = 'pending' AND generated_at IS NULL",
	},
	{
		name: "jobs by piece",
		sql:  "CREATE INDEX IF NOT EXISTS idx_generation_jobs_piece ON generation_jobs(piece_id, created_at DESC)",
	},
	{
		name: "exports by piece",
		sql:  "CREATE INDEX IF NOT EXISTS idx_exports_piece ON exports(piece_id, created_at DESC)",
	},
}

// ApplySchema creates every table and index that does not exist yet.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("create %s: %w", stmt.name, err)
		}
		logger.Info("schema statement applied", "name", stmt.name)
	}
	return nil
}

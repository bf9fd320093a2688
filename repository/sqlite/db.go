// Package sqlite implements the repository contracts on an embedded SQLite
// database. It backs local and demo deployments and the test suites.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	_ "modernc.org/sqlite"
)

// Open opens or creates a SQLite database at path and applies the schema.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewStore wires every SQLite repository around one database
func NewStore(db *sql.DB) *repository.Store {
	return &repository.Store{
		Templates:   &TemplateRepository{db: db},
		Users:       &UserRepository{db: db},
		Pieces:      &PieceRepository{db: db},
		Versions:    &VersionRepository{db: db},
		Suggestions: &SuggestionRepository{db: db},
		Jobs:        &GenerationJobRepository{db: db},
		Exports:     &ExportRepository{db: db},
		Tx:          &TransactionManager{db: db},
		Ping:        db.PingContext,
		Close:       func() { db.Close() },
	}
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS templates (
		id          TEXT PRIMARY KEY,
		catalog_key TEXT UNIQUE,
		title       TEXT NOT NULL,
		category    TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		tags        TEXT NOT NULL DEFAULT '[]',
		is_popular  INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category, title);

	CREATE TABLE IF NOT EXISTS pieces (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		template_id  TEXT NOT NULL REFERENCES templates(id),
		title        TEXT,
		title_search TEXT NOT NULL DEFAULT '',
		content_json TEXT,
		inputs_json  TEXT,
		theses_json  TEXT,
		juris_json   TEXT,
		status       TEXT NOT NULL DEFAULT 'draft',
		revision     INTEGER NOT NULL DEFAULT 1,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pieces_user_created ON pieces(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_pieces_created ON pieces(created_at DESC);

	CREATE TABLE IF NOT EXISTS piece_versions (
		id            TEXT PRIMARY KEY,
		piece_id      TEXT NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
		content_json  TEXT,
		change_reason TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_piece_versions_piece_created ON piece_versions(piece_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS ai_suggestions (
		id               TEXT PRIMARY KEY,
		piece_id         TEXT NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
		action_type      TEXT NOT NULL,
		selection_from   INTEGER,
		selection_to     INTEGER,
		original_text    TEXT NOT NULL,
		suggested_text   TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		piece_version_id TEXT REFERENCES piece_versions(id) ON DELETE SET NULL,
		error_message    TEXT,
		revision         INTEGER NOT NULL DEFAULT 1,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		generated_at     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_ai_suggestions_status_created ON ai_suggestions(status, created_at);

	CREATE TABLE IF NOT EXISTS generation_jobs (
		id            TEXT PRIMARY KEY,
		piece_id      TEXT NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
		status        TEXT NOT NULL DEFAULT 'pending',
		current_step  TEXT,
		steps         TEXT NOT NULL DEFAULT '[]',
		error_message TEXT,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		completed_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_generation_jobs_piece ON generation_jobs(piece_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS exports (
		id               TEXT PRIMARY KEY,
		piece_id         TEXT NOT NULL REFERENCES pieces(id) ON DELETE CASCADE,
		piece_version_id TEXT REFERENCES piece_versions(id) ON DELETE SET NULL,
		format           TEXT NOT NULL,
		filename         TEXT NOT NULL,
		mime_type        TEXT NOT NULL,
		size             INTEGER NOT NULL DEFAULT 0,
		storage_path     TEXT NOT NULL,
		created_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exports_piece ON exports(piece_id, created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// columns added after the first release
	return addColumn(db, "ai_suggestions", "generated_at", "TEXT")
}

// addColumn adds a column to an existing table unless it is already there
func addColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txContextKey struct{}

// getExecutor returns the transaction carried by ctx, or db
func getExecutor(ctx context.Context, db *sql.DB) execer {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// TransactionManager runs functions inside SQLite transactions
type TransactionManager struct {
	db *sql.DB
}

// ExecTx executes fn within a transaction, reusing one already in ctx
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repository.TxFn) error {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Fixed width keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func now() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeValue scans a TEXT timestamp column
type timeValue struct{ t *time.Time }

func (v timeValue) Scan(src interface{}) error {
	var s string
	switch x := src.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case time.Time:
		*v.t = x.UTC()
		return nil
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
	}
	*v.t = t.UTC()
	return nil
}

// nullTimeValue scans a nullable TEXT timestamp column
type nullTimeValue struct{ t **time.Time }

func (v nullTimeValue) Scan(src interface{}) error {
	if src == nil {
		*v.t = nil
		return nil
	}
	var t time.Time
	if err := (timeValue{t: &t}).Scan(src); err != nil {
		return err
	}
	*v.t = &t
	return nil
}

// translate maps driver errors onto the model sentinels
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", resource, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", resource, err)
}

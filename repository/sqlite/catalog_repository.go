package sqlite

import (
	"context"
	"database/sql"

	"lexdraft-backend/models"

	"github.com/google/uuid"
)

// TemplateRepository handles database operations for templates
type TemplateRepository struct {
	db *sql.DB
}

const templateColumns = `id, COALESCE(catalog_key, ''), title, category, description, tags, is_popular, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	t := &models.Template{}
	err := row.Scan(
		&t.ID,
		&t.CatalogKey,
		&t.Title,
		&t.Category,
		&t.Description,
		&t.Tags,
		&t.IsPopular,
		timeValue{&t.CreatedAt},
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns templates ordered by title, optionally restricted to a category
func (r *TemplateRepository) List(ctx context.Context, category string) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	args := []interface{}{}
	if category != "" && category != models.CategoryAll {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY title ASC`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list templates")
	}
	defer rows.Close()

	templates := make([]*models.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, translate(err, "scan template")
		}
		templates = append(templates, t)
	}
	return templates, translate(rows.Err(), "list templates")
}

// GetByID retrieves a template by ID
func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, translate(err, "template")
	}
	return t, nil
}

// GetByCatalogKey retrieves a template by its catalog key
func (r *TemplateRepository) GetByCatalogKey(ctx context.Context, key string) (*models.Template, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE catalog_key = ?`, key)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, translate(err, "template")
	}
	return t, nil
}

// Upsert inserts a template or refreshes the one with the same catalog key
func (r *TemplateRepository) Upsert(ctx context.Context, t *models.Template) error {
	if t.Tags == nil {
		t.Tags = models.StringList{}
	}
	db := getExecutor(ctx, r.db)
	_, err := db.ExecContext(ctx, `
		INSERT INTO templates (id, catalog_key, title, category, description, tags, is_popular, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (catalog_key) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			description = excluded.description,
			tags = excluded.tags,
			is_popular = excluded.is_popular`,
		uuid.New(), t.CatalogKey, t.Title, t.Category, t.Description, t.Tags, t.IsPopular, formatTime(now()),
	)
	if err != nil {
		return translate(err, "upsert template")
	}

	err = db.QueryRowContext(ctx, `SELECT id, created_at FROM templates WHERE catalog_key = ?`, t.CatalogKey).
		Scan(&t.ID, timeValue{&t.CreatedAt})
	return translate(err, "upsert template")
}

// UserRepository handles database operations for users
type UserRepository struct {
	db *sql.DB
}

const userColumns = `id, email, password_hash, name, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, timeValue{&u.CreatedAt}, timeValue{&u.UpdatedAt})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.Name, formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	return translate(err, "create user")
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

// First returns the oldest user
func (r *UserRepository) First(ctx context.Context) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, rowid ASC LIMIT 1`
	u, err := scanUser(getExecutor(ctx, r.db).QueryRowContext(ctx, query))
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

package postgres

import (
	"context"

	"lexdraft-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TemplateRepository handles database operations for templates
type TemplateRepository struct {
	db *pgxpool.Pool
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, COALESCE(catalog_key, ''), title, category, description, tags, is_popular, created_at`

func scanTemplate(row pgx.Row) (*models.Template, error) {
	t := &models.Template{}
	err := row.Scan(
		&t.ID,
		&t.CatalogKey,
		&t.Title,
		&t.Category,
		&t.Description,
		&t.Tags,
		&t.IsPopular,
		&t.CreatedAt,
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
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY title ASC`

	rows, err := GetExecutor(ctx, r.db).Query(ctx, query, args...)
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
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1`
	t, err := scanTemplate(GetExecutor(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "template")
	}
	return t, nil
}

// GetByCatalogKey retrieves a template by its catalog key
func (r *TemplateRepository) GetByCatalogKey(ctx context.Context, key string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE catalog_key = $1`
	t, err := scanTemplate(GetExecutor(ctx, r.db).QueryRow(ctx, query, key))
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
	query := `
		INSERT INTO templates (catalog_key, title, category, description, tags, is_popular)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (catalog_key) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			is_popular = EXCLUDED.is_popular
		RETURNING id, created_at`

	err := GetExecutor(ctx, r.db).QueryRow(
		ctx, query,
		t.CatalogKey,
		t.Title,
		t.Category,
		t.Description,
		t.Tags,
		t.IsPopular,
	).Scan(&t.ID, &t.CreatedAt)

	return translate(err, "upsert template")
}

package postgres

import (
	"context"

	"lexdraft-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExportRepository handles database operations for export records
type ExportRepository struct {
	db *pgxpool.Pool
}

// NewExportRepository creates a new export repository
func NewExportRepository(db *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create creates a new export record
func (r *ExportRepository) Create(ctx context.Context, e *models.Export) error {
	query := `
		INSERT INTO exports (
			piece_id, piece_version_id, format, filename, mime_type, size, storage_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := GetExecutor(ctx, r.db).QueryRow(
		ctx, query,
		e.PieceID,
		e.PieceVersionID,
		e.Format,
		e.Filename,
		e.MimeType,
		e.Size,
		e.StoragePath,
	).Scan(&e.ID, &e.CreatedAt)

	return translate(err, "create export")
}

// GetByID retrieves an export record by ID
func (r *ExportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	e := &models.Export{}
	query := `
		SELECT id, piece_id, piece_version_id, format, filename, mime_type, size, storage_path, created_at
		FROM exports
		WHERE id = $1`

	err := GetExecutor(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.PieceID,
		&e.PieceVersionID,
		&e.Format,
		&e.Filename,
		&e.MimeType,
		&e.Size,
		&e.StoragePath,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, translate(err, "export")
	}
	return e, nil
}

// ListByPiece retrieves all export records for a piece, newest first
func (r *ExportRepository) ListByPiece(ctx context.Context, pieceID uuid.UUID) ([]*models.Export, error) {
	query := `
		SELECT id, piece_id, piece_version_id, format, filename, mime_type, size, storage_path, created_at
		FROM exports
		WHERE piece_id = $1
		ORDER BY created_at DESC`

	rows, err := GetExecutor(ctx, r.db).Query(ctx, query, pieceID)
	if err != nil {
		return nil, translate(err, "list exports")
	}
	defer rows.Close()

	exports := make([]*models.Export, 0)
	for rows.Next() {
		e := &models.Export{}
		err := rows.Scan(
			&e.ID,
			&e.PieceID,
			&e.PieceVersionID,
			&e.Format,
			&e.Filename,
			&e.MimeType,
			&e.Size,
			&e.StoragePath,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, translate(err, "scan export")
		}
		exports = append(exports, e)
	}
	return exports, translate(rows.Err(), "list exports")
}

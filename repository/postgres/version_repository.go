package postgres

import (
	"context"

	"lexdraft-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VersionRepository handles database operations for piece versions
type VersionRepository struct {
	db *pgxpool.Pool
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *pgxpool.Pool) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create inserts a snapshot
func (r *VersionRepository) Create(ctx context.Context, v *models.PieceVersion) error {
	query := `
		INSERT INTO piece_versions (piece_id, content_json, change_reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := GetExecutor(ctx, r.db).QueryRow(ctx, query, v.PieceID, v.ContentJSON, v.ChangeReason).
		Scan(&v.ID, &v.CreatedAt)
	return translate(err, "create piece version")
}

// GetByID retrieves a version including its content
func (r *VersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PieceVersion, error) {
	v := &models.PieceVersion{}
	query := `
		SELECT id, piece_id, content_json, change_reason, created_at
		FROM piece_versions
		WHERE id = $1`

	err := GetExecutor(ctx, r.db).QueryRow(ctx, query, id).
		Scan(&v.ID, &v.PieceID, &v.ContentJSON, &v.ChangeReason, &v.CreatedAt)
	if err != nil {
		return nil, translate(err, "piece version")
	}
	return v, nil
}

// ListByPiece returns the newest versions of a piece
func (r *VersionRepository) ListByPiece(ctx context.Context, pieceID uuid.UUID, limit int) ([]*models.PieceVersion, error) {
	query := `
		SELECT id, piece_id, change_reason, created_at
		FROM piece_versions
		WHERE piece_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := GetExecutor(ctx, r.db).Query(ctx, query, pieceID, limit)
	if err != nil {
		return nil, translate(err, "list piece versions")
	}
	defer rows.Close()

	versions := make([]*models.PieceVersion, 0)
	for rows.Next() {
		v := &models.PieceVersion{}
		if err := rows.Scan(&v.ID, &v.PieceID, &v.ChangeReason, &v.CreatedAt); err != nil {
			return nil, translate(err, "scan piece version")
		}
		versions = append(versions, v)
	}
	return versions, translate(rows.Err(), "list piece versions")
}

// Prune keeps only the newest keep versions of a piece, plus any version an
// accepted suggestion points at
func (r *VersionRepository) Prune(ctx context.Context, pieceID uuid.UUID, keep int) (int64, error) {
	query := `
		DELETE FROM piece_versions v
		WHERE v.piece_id = $1 AND v.id NOT IN (
			SELECT id FROM piece_versions
			WHERE piece_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) AND NOT EXISTS (
			SELECT 1 FROM ai_suggestions s WHERE s.piece_version_id = v.id
		)`

	tag, err := GetExecutor(ctx, r.db).Exec(ctx, query, pieceID, keep)
	if err != nil {
		return 0, translate(err, "prune piece versions")
	}
	return tag.RowsAffected(), nil
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PieceRepository handles database operations for pieces
type PieceRepository struct {
	db *pgxpool.Pool
}

// NewPieceRepository creates a new piece repository
func NewPieceRepository(db *pgxpool.Pool) *PieceRepository {
	return &PieceRepository{db: db}
}

// Create creates a new piece
func (r *PieceRepository) Create(ctx context.Context, piece *models.Piece) error {
	if piece.Status == "" {
		piece.Status = models.PieceStatusDraft
	}
	query := `
		INSERT INTO pieces (
			user_id, template_id, title, content_json, inputs_json,
			theses_json, juris_json, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, revision, created_at, updated_at`

	err := GetExecutor(ctx, r.db).QueryRow(
		ctx, query,
		piece.UserID,
		piece.TemplateID,
		piece.Title,
		piece.ContentJSON,
		piece.InputsJSON,
		piece.ThesesJSON,
		piece.JurisJSON,
		piece.Status,
	).Scan(&piece.ID, &piece.Revision, &piece.CreatedAt, &piece.UpdatedAt)

	return translate(err, "create piece")
}

// GetByID retrieves a piece with its template summary
func (r *PieceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Piece, error) {
	p := &models.Piece{Template: &models.TemplateRef{}}
	query := `
		SELECT p.id, p.user_id, p.template_id, p.title, p.content_json, p.inputs_json,
			p.theses_json, p.juris_json, p.status, p.revision, p.created_at, p.updated_at,
			t.id, t.title, t.category
		FROM pieces p
		JOIN templates t ON t.id = p.template_id
		WHERE p.id = $1`

	err := GetExecutor(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.TemplateID,
		&p.Title,
		&p.ContentJSON,
		&p.InputsJSON,
		&p.ThesesJSON,
		&p.JurisJSON,
		&p.Status,
		&p.Revision,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Template.ID,
		&p.Template.Title,
		&p.Template.Category,
	)
	if err != nil {
		return nil, translate(err, "piece")
	}
	return p, nil
}

// List returns a page of pieces matching the filter and the total count
func (r *PieceRepository) List(ctx context.Context, filter models.PieceFilter) ([]*models.Piece, int, error) {
	var conditions []string
	args := []interface{}{}
	argPos := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("p.user_id = $%d", argPos))
		args = append(args, *filter.UserID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(`p.title ILIKE '%%' || $%d || '%%'`, argPos))
		args = append(args, repository.EscapeLike(filter.Search))
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	db := GetExecutor(ctx, r.db)

	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM pieces p`+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err, "count pieces")
	}

	query := `
		SELECT p.id, p.user_id, p.template_id, p.title, p.status, p.revision,
			p.created_at, p.updated_at, t.id, t.title, t.category
		FROM pieces p
		JOIN templates t ON t.id = p.template_id` + where +
		fmt.Sprintf(" ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err, "list pieces")
	}
	defer rows.Close()

	pieces := make([]*models.Piece, 0)
	for rows.Next() {
		p := &models.Piece{Template: &models.TemplateRef{}}
		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.TemplateID,
			&p.Title,
			&p.Status,
			&p.Revision,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.Template.ID,
			&p.Template.Title,
			&p.Template.Category,
		)
		if err != nil {
			return nil, 0, translate(err, "scan piece")
		}
		pieces = append(pieces, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate(err, "list pieces")
	}

	return pieces, total, nil
}

// Update writes the mutable fields guarded by the piece revision
func (r *PieceRepository) Update(ctx context.Context, piece *models.Piece, expectedRevision int) error {
	query := `
		UPDATE pieces SET
			title = $2,
			content_json = $3,
			status = $4,
			revision = revision + 1,
			updated_at = clock_timestamp()
		WHERE id = $1 AND revision = $5
		RETURNING revision, updated_at`

	db := GetExecutor(ctx, r.db)
	err := db.QueryRow(
		ctx, query,
		piece.ID,
		piece.Title,
		piece.ContentJSON,
		piece.Status,
		expectedRevision,
	).Scan(&piece.Revision, &piece.UpdatedAt)
	if err == nil {
		return nil
	}
	if !IsPgNoRowsError(err) {
		return translate(err, "update piece")
	}

	var current int
	if err := db.QueryRow(ctx, `SELECT revision FROM pieces WHERE id = $1`, piece.ID).Scan(&current); err != nil {
		return translate(err, "piece")
	}
	return models.NewConflictError("piece", piece.ID.String(),
		fmt.Sprintf("revision is %d, expected %d", current, expectedRevision))
}

// Delete removes a piece and, through cascades, its history
func (r *PieceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := GetExecutor(ctx, r.db).Exec(ctx, `DELETE FROM pieces WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete piece")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "piece")
	}
	return nil
}

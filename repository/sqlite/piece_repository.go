package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	"github.com/google/uuid"
)

// PieceRepository handles database operations for pieces
type PieceRepository struct {
	db *sql.DB
}

// SQLite only folds ASCII case, so titles are matched against a lowered copy.
func titleSearch(title *string) string {
	if title == nil {
		return ""
	}
	return strings.ToLower(*title)
}

// Create creates a new piece
func (r *PieceRepository) Create(ctx context.Context, piece *models.Piece) error {
	if piece.Status == "" {
		piece.Status = models.PieceStatusDraft
	}
	piece.ID = uuid.New()
	piece.Revision = 1
	piece.CreatedAt = now()
	piece.UpdatedAt = piece.CreatedAt

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO pieces (
			id, user_id, template_id, title, title_search, content_json, inputs_json,
			theses_json, juris_json, status, revision, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		piece.ID,
		piece.UserID,
		piece.TemplateID,
		piece.Title,
		titleSearch(piece.Title),
		piece.ContentJSON,
		piece.InputsJSON,
		piece.ThesesJSON,
		piece.JurisJSON,
		piece.Status,
		piece.Revision,
		formatTime(piece.CreatedAt),
		formatTime(piece.UpdatedAt),
	)
	return translate(err, "create piece")
}

// GetByID retrieves a piece with its template summary
func (r *PieceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Piece, error) {
	p := &models.Piece{Template: &models.TemplateRef{}}
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT p.id, p.user_id, p.template_id, p.title, p.content_json, p.inputs_json,
			p.theses_json, p.juris_json, p.status, p.revision, p.created_at, p.updated_at,
			t.id, t.title, t.category
		FROM pieces p
		JOIN templates t ON t.id = p.template_id
		WHERE p.id = ?`, id).Scan(
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
		timeValue{&p.CreatedAt},
		timeValue{&p.UpdatedAt},
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

	if filter.UserID != nil {
		conditions = append(conditions, "p.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "p.status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, `p.title_search LIKE ? ESCAPE '\'`)
		args = append(args, "%"+repository.EscapeLike(strings.ToLower(filter.Search))+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	db := getExecutor(ctx, r.db)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pieces p`+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err, "count pieces")
	}

	query := `
		SELECT p.id, p.user_id, p.template_id, p.title, p.status, p.revision,
			p.created_at, p.updated_at, t.id, t.title, t.category
		FROM pieces p
		JOIN templates t ON t.id = p.template_id` + where +
		` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
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
			timeValue{&p.CreatedAt},
			timeValue{&p.UpdatedAt},
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
	db := getExecutor(ctx, r.db)
	updatedAt := now()

	res, err := db.ExecContext(ctx, `
		UPDATE pieces SET
			title = ?,
			title_search = ?,
			content_json = ?,
			status = ?,
			revision = revision + 1,
			updated_at = ?
		WHERE id = ? AND revision = ?`,
		piece.Title,
		titleSearch(piece.Title),
		piece.ContentJSON,
		piece.Status,
		formatTime(updatedAt),
		piece.ID,
		expectedRevision,
	)
	if err != nil {
		return translate(err, "update piece")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		piece.Revision = expectedRevision + 1
		piece.UpdatedAt = updatedAt
		return nil
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT revision FROM pieces WHERE id = ?`, piece.ID).Scan(&current); err != nil {
		return translate(err, "piece")
	}
	return models.NewConflictError("piece", piece.ID.String(),
		fmt.Sprintf("revision is %d, expected %d", current, expectedRevision))
}

// Delete removes a piece and, through cascades, its history
func (r *PieceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM pieces WHERE id = ?`, id)
	if err != nil {
		return translate(err, "delete piece")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return translate(sql.ErrNoRows, "piece")
	}
	return nil
}

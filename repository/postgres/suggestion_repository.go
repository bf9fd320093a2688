package postgres

import (
	"context"
	"fmt"
	"time"

	"lexdraft-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SuggestionRepository handles database operations for AI suggestions
type SuggestionRepository struct {
	db *pgxpool.Pool
}

// NewSuggestionRepository creates a new suggestion repository
func NewSuggestionRepository(db *pgxpool.Pool) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `id, piece_id, action_type, selection_from, selection_to, original_text,
	suggested_text, status, piece_version_id, error_message, revision, created_at, updated_at, generated_at`

func scanSuggestion(row pgx.Row) (*models.AiSuggestion, error) {
	s := &models.AiSuggestion{}
	err := row.Scan(
		&s.ID,
		&s.PieceID,
		&s.ActionType,
		&s.SelectionFrom,
		&s.SelectionTo,
		&s.OriginalText,
		&s.SuggestedText,
		&s.Status,
		&s.PieceVersionID,
		&s.ErrorMessage,
		&s.Revision,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a pending suggestion
func (r *SuggestionRepository) Create(ctx context.Context, s *models.AiSuggestion) error {
	if s.Status == "" {
		s.Status = models.SuggestionPending
	}
	query := `
		INSERT INTO ai_suggestions (
			piece_id, action_type, selection_from, selection_to,
			original_text, suggested_text, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, revision, created_at, updated_at`

	err := GetExecutor(ctx, r.db).QueryRow(
		ctx, query,
		s.PieceID,
		s.ActionType,
		s.SelectionFrom,
		s.SelectionTo,
		s.OriginalText,
		s.SuggestedText,
		s.Status,
	).Scan(&s.ID, &s.Revision, &s.CreatedAt, &s.UpdatedAt)

	return translate(err, "create suggestion")
}

// GetByID retrieves a suggestion by ID
func (r *SuggestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AiSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM ai_suggestions WHERE id = $1`
	s, err := scanSuggestion(GetExecutor(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "suggestion")
	}
	return s, nil
}

// SetSuggestedText stores generated text while the suggestion is pending
func (r *SuggestionRepository) SetSuggestedText(ctx context.Context, id uuid.UUID, text string) error {
	query := `
		UPDATE ai_suggestions SET
			suggested_text = $2,
			generated_at = COALESCE(generated_at, clock_timestamp()),
			updated_at = clock_timestamp()
		WHERE id = $1 AND status = 'pending'`

	tag, err := GetExecutor(ctx, r.db).Exec(ctx, query, id, text)
	if err != nil {
		return translate(err, "update suggestion text")
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, id, nil)
	}
	return nil
}

// Transition moves a pending suggestion to a terminal status
func (r *SuggestionRepository) Transition(ctx context.Context, t models.SuggestionTransition) (*models.AiSuggestion, error) {
	query := `
		UPDATE ai_suggestions SET
			status = $2,
			suggested_text = COALESCE($3, suggested_text),
			error_message = COALESCE($4, error_message),
			revision = revision + 1,
			updated_at = clock_timestamp()
		WHERE id = $1 AND status = 'pending' AND ($5::int IS NULL OR revision = $5)
		RETURNING ` + suggestionColumns

	s, err := scanSuggestion(GetExecutor(ctx, r.db).QueryRow(
		ctx, query,
		t.ID,
		t.To,
		t.SuggestedText,
		t.ErrorMessage,
		t.ExpectedRevision,
	))
	if err == nil {
		return s, nil
	}
	if !IsPgNoRowsError(err) {
		return nil, translate(err, "transition suggestion")
	}
	return nil, r.explainMiss(ctx, t.ID, t.ExpectedRevision)
}

// explainMiss reports why a guarded suggestion update matched no row
func (r *SuggestionRepository) explainMiss(ctx context.Context, id uuid.UUID, expectedRevision *int) error {
	var status models.SuggestionStatus
	var revision int
	err := GetExecutor(ctx, r.db).QueryRow(ctx, `SELECT status, revision FROM ai_suggestions WHERE id = $1`, id).
		Scan(&status, &revision)
	if err != nil {
		return translate(err, "suggestion")
	}
	if status != models.SuggestionPending {
		return fmt.Errorf("suggestion is already %s: %w", status, models.ErrInvalidState)
	}
	if expectedRevision != nil && *expectedRevision != revision {
		return models.NewConflictError("suggestion", id.String(),
			fmt.Sprintf("revision is %d, expected %d", revision, *expectedRevision))
	}
	return models.NewConflictError("suggestion", id.String(), "concurrent update")
}

// SetPieceVersion links an accepted suggestion to its snapshot
func (r *SuggestionRepository) SetPieceVersion(ctx context.Context, id, versionID uuid.UUID) error {
	query := `
		UPDATE ai_suggestions SET
			piece_version_id = $2,
			updated_at = clock_timestamp()
		WHERE id = $1`

	tag, err := GetExecutor(ctx, r.db).Exec(ctx, query, id, versionID)
	if err != nil {
		return translate(err, "link suggestion version")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "suggestion")
	}
	return nil
}

// FailPendingBefore fails pending suggestions created before cutoff whose
// stream never completed
func (r *SuggestionRepository) FailPendingBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	query := `
		UPDATE ai_suggestions SET
			status = 'failed',
			error_message = $2,
			revision = revision + 1,
			updated_at = clock_timestamp()
		WHERE status = 'pending' AND generated_at IS NULL AND created_at < $1`

	tag, err := GetExecutor(ctx, r.db).Exec(ctx, query, cutoff, reason)
	if err != nil {
		return 0, translate(err, "fail stale suggestions")
	}
	return tag.RowsAffected(), nil
}

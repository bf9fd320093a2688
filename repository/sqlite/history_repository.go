package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lexdraft-backend/models"

	"github.com/google/uuid"
)

// VersionRepository handles database operations for piece versions
type VersionRepository struct {
	db *sql.DB
}

// Create inserts a snapshot
func (r *VersionRepository) Create(ctx context.Context, v *models.PieceVersion) error {
	v.ID = uuid.New()
	v.CreatedAt = now()
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO piece_versions (id, piece_id, content_json, change_reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.PieceID, v.ContentJSON, v.ChangeReason, formatTime(v.CreatedAt),
	)
	return translate(err, "create piece version")
}

// GetByID retrieves a version including its content
func (r *VersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PieceVersion, error) {
	v := &models.PieceVersion{}
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, piece_id, content_json, change_reason, created_at
		FROM piece_versions WHERE id = ?`, id).
		Scan(&v.ID, &v.PieceID, &v.ContentJSON, &v.ChangeReason, timeValue{&v.CreatedAt})
	if err != nil {
		return nil, translate(err, "piece version")
	}
	return v, nil
}

// ListByPiece returns the newest versions of a piece
func (r *VersionRepository) ListByPiece(ctx context.Context, pieceID uuid.UUID, limit int) ([]*models.PieceVersion, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, piece_id, change_reason, created_at
		FROM piece_versions
		WHERE piece_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, pieceID, limit)
	if err != nil {
		return nil, translate(err, "list piece versions")
	}
	defer rows.Close()

	versions := make([]*models.PieceVersion, 0)
	for rows.Next() {
		v := &models.PieceVersion{}
		if err := rows.Scan(&v.ID, &v.PieceID, &v.ChangeReason, timeValue{&v.CreatedAt}); err != nil {
			return nil, translate(err, "scan piece version")
		}
		versions = append(versions, v)
	}
	return versions, translate(rows.Err(), "list piece versions")
}

// Prune keeps only the newest keep versions of a piece, plus any version an
// accepted suggestion points at
func (r *VersionRepository) Prune(ctx context.Context, pieceID uuid.UUID, keep int) (int64, error) {
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		DELETE FROM piece_versions
		WHERE piece_id = ? AND id NOT IN (
			SELECT id FROM piece_versions
			WHERE piece_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		) AND NOT EXISTS (
			SELECT 1 FROM ai_suggestions s WHERE s.piece_version_id = piece_versions.id
		)`, pieceID, pieceID, keep)
	if err != nil {
		return 0, translate(err, "prune piece versions")
	}
	return res.RowsAffected()
}

// SuggestionRepository handles database operations for AI suggestions
type SuggestionRepository struct {
	db *sql.DB
}

const suggestionColumns = `id, piece_id, action_type, selection_from, selection_to, original_text,
	suggested_text, status, piece_version_id, error_message, revision, created_at, updated_at, generated_at`

func scanSuggestion(row rowScanner) (*models.AiSuggestion, error) {
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
		timeValue{&s.CreatedAt},
		timeValue{&s.UpdatedAt},
		nullTimeValue{&s.GeneratedAt},
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
	s.ID = uuid.New()
	s.Revision = 1
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO ai_suggestions (
			id, piece_id, action_type, selection_from, selection_to, original_text,
			suggested_text, status, revision, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.PieceID,
		s.ActionType,
		s.SelectionFrom,
		s.SelectionTo,
		s.OriginalText,
		s.SuggestedText,
		s.Status,
		s.Revision,
		formatTime(s.CreatedAt),
		formatTime(s.UpdatedAt),
	)
	return translate(err, "create suggestion")
}

// GetByID retrieves a suggestion by ID
func (r *SuggestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AiSuggestion, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM ai_suggestions WHERE id = ?`, id)
	s, err := scanSuggestion(row)
	if err != nil {
		return nil, translate(err, "suggestion")
	}
	return s, nil
}

// SetSuggestedText stores generated text while the suggestion is pending
func (r *SuggestionRepository) SetSuggestedText(ctx context.Context, id uuid.UUID, text string) error {
	ts := formatTime(now())
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE ai_suggestions SET
			suggested_text = ?,
			generated_at = COALESCE(generated_at, ?),
			updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		text, ts, ts, id,
	)
	if err != nil {
		return translate(err, "update suggestion text")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.explainMiss(ctx, id, nil)
	}
	return nil
}

// Transition moves a pending suggestion to a terminal status
func (r *SuggestionRepository) Transition(ctx context.Context, t models.SuggestionTransition) (*models.AiSuggestion, error) {
	db := getExecutor(ctx, r.db)
	res, err := db.ExecContext(ctx, `
		UPDATE ai_suggestions SET
			status = ?,
			suggested_text = COALESCE(?, suggested_text),
			error_message = COALESCE(?, error_message),
			revision = revision + 1,
			updated_at = ?
		WHERE id = ? AND status = 'pending' AND (? IS NULL OR revision = ?)`,
		t.To,
		t.SuggestedText,
		t.ErrorMessage,
		formatTime(now()),
		t.ID,
		t.ExpectedRevision,
		t.ExpectedRevision,
	)
	if err != nil {
		return nil, translate(err, "transition suggestion")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, r.explainMiss(ctx, t.ID, t.ExpectedRevision)
	}
	return r.GetByID(ctx, t.ID)
}

// explainMiss reports why a guarded suggestion update matched no row
func (r *SuggestionRepository) explainMiss(ctx context.Context, id uuid.UUID, expectedRevision *int) error {
	var status models.SuggestionStatus
	var revision int
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT status, revision FROM ai_suggestions WHERE id = ?`, id).
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
	res, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE ai_suggestions SET piece_version_id = ?, updated_at = ? WHERE id = ?`,
		versionID, formatTime(now()), id,
	)
	if err != nil {
		return translate(err, "link suggestion version")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return translate(sql.ErrNoRows, "suggestion")
	}
	return nil
}

// FailPendingBefore fails pending suggestions created before cutoff whose
// stream never completed
func (r *SuggestionRepository) FailPendingBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE ai_suggestions SET
			status = 'failed',
			error_message = ?,
			revision = revision + 1,
			updated_at = ?
		WHERE status = 'pending' AND generated_at IS NULL AND created_at < ?`,
		reason, formatTime(now()), formatTime(cutoff),
	)
	if err != nil {
		return 0, translate(err, "fail stale suggestions")
	}
	return res.RowsAffected()
}

// GenerationJobRepository handles database operations for generation jobs
type GenerationJobRepository struct {
	db *sql.DB
}

const jobColumns = `id, piece_id, status, current_step, steps, error_message, created_at, updated_at, completed_at`

func scanJob(row rowScanner) (*models.GenerationJob, error) {
	job := &models.GenerationJob{}
	err := row.Scan(
		&job.ID,
		&job.PieceID,
		&job.Status,
		&job.CurrentStep,
		&job.Steps,
		&job.ErrorMessage,
		timeValue{&job.CreatedAt},
		timeValue{&job.UpdatedAt},
		nullTimeValue{&job.CompletedAt},
	)
	if err != nil {
		return nil, err
	}
	if job.Steps == nil {
		job.Steps = make(models.GenerationSteps, 0)
	}
	return job, nil
}

// Create creates a new generation job
func (r *GenerationJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	job.ID = uuid.New()
	job.CreatedAt = now()
	job.UpdatedAt = job.CreatedAt
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO generation_jobs (id, piece_id, status, current_step, steps, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.PieceID, job.Status, job.CurrentStep, job.Steps, job.ErrorMessage,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	return translate(err, "create generation job")
}

// GetByID retrieves a generation job by ID
func (r *GenerationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	job, err := scanJob(getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`, id))
	if err != nil {
		return nil, translate(err, "generation job")
	}
	return job, nil
}

// GetLatestByPiece retrieves the latest generation job for a piece
func (r *GenerationJobRepository) GetLatestByPiece(ctx context.Context, pieceID uuid.UUID) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE piece_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`
	job, err := scanJob(getExecutor(ctx, r.db).QueryRowContext(ctx, query, pieceID))
	if err != nil {
		return nil, translate(err, "generation job")
	}
	return job, nil
}

// UpdateStatus updates the status of a generation job
func (r *GenerationJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.GenerationJobStatus) error {
	_, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE generation_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(now()), id)
	return translate(err, "update generation job")
}

// UpdateProgress updates the progress of a generation job
func (r *GenerationJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.GenerationSteps) error {
	_, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE generation_jobs SET current_step = ?, steps = ?, updated_at = ? WHERE id = ?`,
		currentStep, steps, formatTime(now()), id)
	return translate(err, "update generation job")
}

// Complete marks a generation job as completed
func (r *GenerationJobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	ts := formatTime(now())
	_, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE generation_jobs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		models.JobStatusCompleted, ts, ts, id)
	return translate(err, "complete generation job")
}

// Fail marks a generation job as failed
func (r *GenerationJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE generation_jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		models.JobStatusFailed, errorMessage, formatTime(now()), id)
	return translate(err, "fail generation job")
}

// ExportRepository handles database operations for export records
type ExportRepository struct {
	db *sql.DB
}

const exportColumns = `id, piece_id, piece_version_id, format, filename, mime_type, size, storage_path, created_at`

func scanExport(row rowScanner) (*models.Export, error) {
	e := &models.Export{}
	err := row.Scan(
		&e.ID,
		&e.PieceID,
		&e.PieceVersionID,
		&e.Format,
		&e.Filename,
		&e.MimeType,
		&e.Size,
		&e.StoragePath,
		timeValue{&e.CreatedAt},
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create creates a new export record
func (r *ExportRepository) Create(ctx context.Context, e *models.Export) error {
	e.ID = uuid.New()
	e.CreatedAt = now()
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO exports (`+exportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PieceID, e.PieceVersionID, e.Format, e.Filename, e.MimeType, e.Size, e.StoragePath,
		formatTime(e.CreatedAt),
	)
	return translate(err, "create export")
}

// GetByID retrieves an export record by ID
func (r *ExportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	e, err := scanExport(getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+exportColumns+` FROM exports WHERE id = ?`, id))
	if err != nil {
		return nil, translate(err, "export")
	}
	return e, nil
}

// ListByPiece retrieves all export records for a piece, newest first
func (r *ExportRepository) ListByPiece(ctx context.Context, pieceID uuid.UUID) ([]*models.Export, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx,
		`SELECT `+exportColumns+` FROM exports WHERE piece_id = ? ORDER BY created_at DESC, rowid DESC`, pieceID)
	if err != nil {
		return nil, translate(err, "list exports")
	}
	defer rows.Close()

	exports := make([]*models.Export, 0)
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, translate(err, "scan export")
		}
		exports = append(exports, e)
	}
	return exports, translate(rows.Err(), "list exports")
}

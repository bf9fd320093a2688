package postgres

import (
	"context"

	"lexdraft-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenerationJobRepository handles database operations for generation jobs
type GenerationJobRepository struct {
	db *pgxpool.Pool
}

// NewGenerationJobRepository creates a new generation job repository
func NewGenerationJobRepository(db *pgxpool.Pool) *GenerationJobRepository {
	return &GenerationJobRepository{db: db}
}

const jobColumns = `id, piece_id, status, current_step, steps, error_message, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*models.GenerationJob, error) {
	job := &models.GenerationJob{}
	err := row.Scan(
		&job.ID,
		&job.PieceID,
		&job.Status,
		&job.CurrentStep,
		&job.Steps,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
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
	query := `
		INSERT INTO generation_jobs (piece_id, status, current_step, steps, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := GetExecutor(ctx, r.db).QueryRow(
		ctx, query,
		job.PieceID,
		job.Status,
		job.CurrentStep,
		job.Steps,
		job.ErrorMessage,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)

	return translate(err, "create generation job")
}

// GetByID retrieves a generation job by ID
func (r *GenerationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	job, err := scanJob(GetExecutor(ctx, r.db).QueryRow(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "generation job")
	}
	return job, nil
}

// GetLatestByPiece retrieves the latest generation job for a piece
func (r *GenerationJobRepository) GetLatestByPiece(ctx context.Context, pieceID uuid.UUID) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE piece_id = $1 ORDER BY created_at DESC LIMIT 1`
	job, err := scanJob(GetExecutor(ctx, r.db).QueryRow(ctx, query, pieceID))
	if err != nil {
		return nil, translate(err, "generation job")
	}
	return job, nil
}

// UpdateStatus updates the status of a generation job
func (r *GenerationJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.GenerationJobStatus) error {
	query := `
		UPDATE generation_jobs SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := GetExecutor(ctx, r.db).Exec(ctx, query, id, status)
	return translate(err, "update generation job")
}

// UpdateProgress updates the progress of a generation job
func (r *GenerationJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.GenerationSteps) error {
	query := `
		UPDATE generation_jobs SET
			current_step = $2,
			steps = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := GetExecutor(ctx, r.db).Exec(ctx, query, id, currentStep, steps)
	return translate(err, "update generation job")
}

// Complete marks a generation job as completed
func (r *GenerationJobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE generation_jobs SET
			status = $2,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`

	_, err := GetExecutor(ctx, r.db).Exec(ctx, query, id, models.JobStatusCompleted)
	return translate(err, "complete generation job")
}

// Fail marks a generation job as failed
func (r *GenerationJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE generation_jobs SET
			status = $2,
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := GetExecutor(ctx, r.db).Exec(ctx, query, id, models.JobStatusFailed, errorMessage)
	return translate(err, "fail generation job")
}

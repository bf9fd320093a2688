package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"lexdraft-backend/llm"
	"lexdraft-backend/models"
	"lexdraft-backend/prosemirror"
	"lexdraft-backend/repository"

	"github.com/google/uuid"
)

// Generation step names, in order
const (
	stepPrompt   = "Preparing Prompt"
	stepGenerate = "Drafting Document"
	stepAssemble = "Assembling Document"
)

// DraftService drafts piece content in background generation jobs
type DraftService struct {
	pieces    repository.PieceRepository
	templates repository.TemplateRepository
	jobs      repository.GenerationJobRepository
	tx        repository.TransactionManager
	versions  *VersionService
	provider  llm.Provider
	indexer   PieceIndexer
	logger    *slog.Logger

	baseCtx context.Context
	wg      sync.WaitGroup
}

// DraftServiceOption is a functional option for DraftService
type DraftServiceOption func(*DraftService)

// DraftWithPieceRepository sets the piece repository
func DraftWithPieceRepository(repo repository.PieceRepository) DraftServiceOption {
	return func(s *DraftService) {
		s.pieces = repo
	}
}

// DraftWithTemplateRepository sets the template repository
func DraftWithTemplateRepository(repo repository.TemplateRepository) DraftServiceOption {
	return func(s *DraftService) {
		s.templates = repo
	}
}

// DraftWithGenerationJobRepository sets the generation job repository
func DraftWithGenerationJobRepository(repo repository.GenerationJobRepository) DraftServiceOption {
	return func(s *DraftService) {
		s.jobs = repo
	}
}

// DraftWithTransactionManager sets the transaction manager
func DraftWithTransactionManager(tx repository.TransactionManager) DraftServiceOption {
	return func(s *DraftService) {
		s.tx = tx
	}
}

// DraftWithVersionService sets the version service
func DraftWithVersionService(versions *VersionService) DraftServiceOption {
	return func(s *DraftService) {
		s.versions = versions
	}
}

// DraftWithProvider sets the text generation provider
func DraftWithProvider(provider llm.Provider) DraftServiceOption {
	return func(s *DraftService) {
		s.provider = provider
	}
}

// DraftWithIndexer sets the search indexer
func DraftWithIndexer(indexer PieceIndexer) DraftServiceOption {
	return func(s *DraftService) {
		s.indexer = indexer
	}
}

// DraftWithLogger sets the logger
func DraftWithLogger(logger *slog.Logger) DraftServiceOption {
	return func(s *DraftService) {
		s.logger = logger
	}
}

// DraftWithBaseContext sets the context background jobs run under.
// Cancelling it aborts running jobs.
func DraftWithBaseContext(ctx context.Context) DraftServiceOption {
	return func(s *DraftService) {
		s.baseCtx = ctx
	}
}

// NewDraftService creates a new draft service
func NewDraftService(opts ...DraftServiceOption) *DraftService {
	s := &DraftService{logger: discardLogger(), baseCtx: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DraftService) ready() error {
	if s.pieces == nil {
		return errors.New("piece repository not set")
	}
	if s.templates == nil {
		return errors.New("template repository not set")
	}
	if s.jobs == nil {
		return errors.New("generation job repository not set")
	}
	if s.tx == nil {
		return errors.New("transaction manager not set")
	}
	if s.versions == nil {
		return errors.New("version service not set")
	}
	return nil
}

// GenerateDraftRequest represents a request to generate a draft
type GenerateDraftRequest struct {
	PieceID uuid.UUID
	UserID  *uuid.UUID
}

// GenerateDraftResult represents the result of creating a generation job
type GenerateDraftResult struct {
	JobID  uuid.UUID
	Status models.GenerationJobStatus
}

// GenerateDraft creates a generation job and returns immediately. Start runs it.
func (s *DraftService) GenerateDraft(ctx context.Context, req GenerateDraftRequest) (*GenerateDraftResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", models.ErrProviderUnavailable)
	}

	piece, err := loadPiece(ctx, s.pieces, req.PieceID, req.UserID)
	if err != nil {
		return nil, err
	}
	if piece.Status == models.PieceStatusGenerating {
		return nil, fmt.Errorf("%w: piece is already being generated", models.ErrInvalidState)
	}

	job := &models.GenerationJob{
		PieceID: piece.ID,
		Status:  models.JobStatusPending,
		Steps:   initializeSteps(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create generation job: %w", err)
	}

	s.logger.Info("generation job created", "job_id", job.ID, "piece_id", piece.ID)
	return &GenerateDraftResult{JobID: job.ID, Status: job.Status}, nil
}

// Start runs ProcessDraft for jobID in the background under the base context
func (s *DraftService) Start(jobID uuid.UUID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.ProcessDraft(s.baseCtx, jobID); err != nil {
			// already recorded on the job
			s.logger.Error("generation job failed", "job_id", jobID, "error", err)
		}
	}()
}

// Wait blocks until background jobs have returned
func (s *DraftService) Wait() {
	s.wg.Wait()
}

// GetJobStatusRequest represents a request to get job status
type GetJobStatusRequest struct {
	JobID  uuid.UUID
	UserID *uuid.UUID
}

// GetJobStatus retrieves a generation job
func (s *DraftService) GetJobStatus(ctx context.Context, req GetJobStatusRequest) (*models.GenerationJob, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if _, err := loadPiece(ctx, s.pieces, job.PieceID, req.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("generation job: %w", models.ErrNotFound)
		}
		return nil, err
	}
	return job, nil
}

func initializeSteps() models.GenerationSteps {
	return models.GenerationSteps{
		{Name: stepPrompt, Status: "pending"},
		{Name: stepGenerate, Status: "pending"},
		{Name: stepAssemble, Status: "pending"},
	}
}

// ProcessDraft performs the generation. The piece is generating while the
// job runs and returns to draft if it fails.
func (s *DraftService) ProcessDraft(ctx context.Context, jobID uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.provider == nil {
		return fmt.Errorf("%w: no provider configured", models.ErrProviderUnavailable)
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load generation job: %w", err)
	}

	piece, err := s.pieces.GetByID(ctx, job.PieceID)
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to load piece: "+err.Error())
		return err
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	piece.Status = models.PieceStatusGenerating
	if err := s.pieces.Update(ctx, piece, piece.Revision); err != nil {
		s.markJobFailed(ctx, jobID, "failed to mark piece generating: "+err.Error())
		return err
	}

	fail := func(message string, err error) error {
		s.markJobFailed(ctx, jobID, fmt.Sprintf("%s: %v", message, err))
		s.resetPiece(ctx, piece.ID)
		return fmt.Errorf("%s: %w", message, err)
	}

	// 1. Prompt
	if err := s.updateStepStatus(ctx, jobID, stepPrompt, "in_progress"); err != nil {
		return fail("failed to update step", err)
	}
	template, err := s.templates.GetByID(ctx, piece.TemplateID)
	if err != nil {
		return fail("failed to load template", err)
	}
	prompt := llm.DraftPrompt(draftInput(piece, template))
	if err := s.updateStepStatus(ctx, jobID, stepPrompt, "completed"); err != nil {
		return fail("failed to update step", err)
	}

	// 2. Generation
	if err := s.updateStepStatus(ctx, jobID, stepGenerate, "in_progress"); err != nil {
		return fail("failed to update step", err)
	}
	stream, err := s.provider.StreamText(ctx, prompt)
	if err != nil {
		return fail("failed to start generation", err)
	}
	text, err := llm.Collect(stream)
	if err != nil {
		return fail("failed to generate content", err)
	}
	if strings.TrimSpace(text) == "" {
		return fail("failed to generate content", errors.New("provider returned no text"))
	}
	if err := s.updateStepStatus(ctx, jobID, stepGenerate, "completed"); err != nil {
		return fail("failed to update step", err)
	}

	// 3. Assembly
	if err := s.updateStepStatus(ctx, jobID, stepAssemble, "in_progress"); err != nil {
		return fail("failed to update step", err)
	}
	content, err := prosemirror.FromPlainText(text).Marshal()
	if err != nil {
		return fail("failed to build document", err)
	}
	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		current, err := s.pieces.GetByID(ctx, piece.ID)
		if err != nil {
			return err
		}
		if !current.ContentJSON.IsNull() {
			if _, err := s.versions.SnapshotPiece(ctx, current, models.ReasonManual); err != nil {
				return err
			}
		}
		current.ContentJSON = models.JSONB(content)
		current.Status = models.PieceStatusCompleted
		if err := s.pieces.Update(ctx, current, current.Revision); err != nil {
			return err
		}
		piece = current
		return nil
	})
	if err != nil {
		return fail("failed to store generated content", err)
	}
	if err := s.updateStepStatus(ctx, jobID, stepAssemble, "completed"); err != nil {
		return fmt.Errorf("update step: %w", err)
	}

	if err := s.jobs.Complete(ctx, jobID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if s.indexer != nil {
		s.indexer.IndexPiece(piece)
	}

	s.logger.Info("generation job completed", "job_id", jobID, "piece_id", piece.ID, "length", len(text))
	return nil
}

func draftInput(piece *models.Piece, template *models.Template) llm.DraftInput {
	in := llm.DraftInput{
		TemplateTitle:       template.Title,
		TemplateCategory:    template.Category,
		TemplateDescription: template.Description,
		Inputs:              string(piece.InputsJSON),
		Theses:              string(piece.ThesesJSON),
		Jurisprudence:       string(piece.JurisJSON),
	}
	if piece.Title != nil {
		in.Title = *piece.Title
	}
	return in
}

// updateStepStatus updates the status of a specific step in the generation job
func (s *DraftService) updateStepStatus(ctx context.Context, jobID uuid.UUID, stepName, status string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	steps := job.Steps
	var currentStep string
	if job.CurrentStep != nil {
		currentStep = *job.CurrentStep
	}

	for i := range steps {
		if steps[i].Name == stepName {
			steps[i].Status = status
			if status == "in_progress" {
				currentStep = stepName
			}
			break
		}
	}

	return s.jobs.UpdateProgress(ctx, jobID, currentStep, steps)
}

// markJobFailed marks a job as failed with an error message
func (s *DraftService) markJobFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) {
	if err := s.jobs.Fail(context.WithoutCancel(ctx), jobID, errorMessage); err != nil {
		s.logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
}

// resetPiece returns a piece left generating by a failed job to draft
func (s *DraftService) resetPiece(ctx context.Context, pieceID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	piece, err := s.pieces.GetByID(ctx, pieceID)
	if err != nil {
		s.logger.Error("failed to reload piece", "piece_id", pieceID, "error", err)
		return
	}
	if piece.Status != models.PieceStatusGenerating {
		return
	}
	piece.Status = models.PieceStatusDraft
	if err := s.pieces.Update(ctx, piece, piece.Revision); err != nil {
		s.logger.Error("failed to reset piece status", "piece_id", pieceID, "error", err)
	}
}

// Package repository defines the persistence contracts of the drafting backend.
// Implementations live in the postgres and sqlite subpackages; both join a
// transaction started by their TransactionManager through the context.
package repository

import (
	"context"
	"time"

	"lexdraft-backend/models"

	"github.com/google/uuid"
)

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx executes fn within a transaction. The transaction is committed
	// when fn returns nil and rolled back otherwise.
	ExecTx(ctx context.Context, fn TxFn) error
}

// TemplateRepository reads the seeded template catalog
type TemplateRepository interface {
	List(ctx context.Context, category string) ([]*models.Template, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	GetByCatalogKey(ctx context.Context, key string) (*models.Template, error)
	Upsert(ctx context.Context, template *models.Template) error
}

// UserRepository stores users
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// First returns the oldest user, or ErrNotFound when there is none.
	First(ctx context.Context) (*models.User, error)
}

// PieceRepository stores pieces
type PieceRepository interface {
	Create(ctx context.Context, piece *models.Piece) error
	// GetByID returns the piece with its template summary.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Piece, error)
	// List returns one page of pieces, newest first, and the total match count.
	List(ctx context.Context, filter models.PieceFilter) ([]*models.Piece, int, error)
	// Update writes title, content and status when the stored revision equals
	// expectedRevision, and bumps the revision. A mismatch is a ConflictError.
	Update(ctx context.Context, piece *models.Piece, expectedRevision int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// VersionRepository stores immutable piece snapshots
type VersionRepository interface {
	Create(ctx context.Context, version *models.PieceVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PieceVersion, error)
	// ListByPiece returns the newest versions first, without content.
	ListByPiece(ctx context.Context, pieceID uuid.UUID, limit int) ([]*models.PieceVersion, error)
	// Prune deletes all but the newest keep versions of a piece. Versions
	// referenced by a suggestion's piece_version_id survive.
	Prune(ctx context.Context, pieceID uuid.UUID, keep int) (int64, error)
}

// SuggestionRepository stores AI suggestions
type SuggestionRepository interface {
	Create(ctx context.Context, suggestion *models.AiSuggestion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AiSuggestion, error)
	// SetSuggestedText records generated text on a pending suggestion and
	// marks its generation complete.
	SetSuggestedText(ctx context.Context, id uuid.UUID, text string) error
	// Transition moves a pending suggestion to a terminal status. A suggestion
	// that is no longer pending yields ErrInvalidState; a revision mismatch
	// yields a ConflictError.
	Transition(ctx context.Context, t models.SuggestionTransition) (*models.AiSuggestion, error)
	// SetPieceVersion links an accepted suggestion to the snapshot taken for it.
	SetPieceVersion(ctx context.Context, id, versionID uuid.UUID) error
	// FailPendingBefore marks pending suggestions created before cutoff whose
	// generation never completed as failed.
	FailPendingBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// GenerationJobRepository stores draft generation jobs
type GenerationJobRepository interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	GetLatestByPiece(ctx context.Context, pieceID uuid.UUID) (*models.GenerationJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.GenerationJobStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.GenerationSteps) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// ExportRepository stores export artifact records
type ExportRepository interface {
	Create(ctx context.Context, export *models.Export) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Export, error)
	ListByPiece(ctx context.Context, pieceID uuid.UUID) ([]*models.Export, error)
}

// Store bundles every repository of one backend
type Store struct {
	Templates   TemplateRepository
	Users       UserRepository
	Pieces      PieceRepository
	Versions    VersionRepository
	Suggestions SuggestionRepository
	Jobs        GenerationJobRepository
	Exports     ExportRepository
	Tx          TransactionManager

	// Ping checks that the backing database is reachable.
	Ping func(ctx context.Context) error
	// Close releases the backing database.
	Close func()
}

// EscapeLike escapes LIKE wildcards so user input matches literally
func EscapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range s {
		switch c {
		case '\\', '%', '_':
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r)
}

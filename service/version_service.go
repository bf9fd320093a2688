package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	defaultVersionListLimit = 10
	maxVersionListLimit     = 100
)

// VersionService captures and restores piece snapshots
type VersionService struct {
	versions  repository.VersionRepository
	pieces    repository.PieceRepository
	tx        repository.TransactionManager
	indexer   PieceIndexer
	retention int
	logger    *slog.Logger
}

// VersionServiceOption is a functional option for VersionService
type VersionServiceOption func(*VersionService)

// VersionWithVersionRepository sets the version repository
func VersionWithVersionRepository(repo repository.VersionRepository) VersionServiceOption {
	return func(s *VersionService) {
		s.versions = repo
	}
}

// VersionWithPieceRepository sets the piece repository
func VersionWithPieceRepository(repo repository.PieceRepository) VersionServiceOption {
	return func(s *VersionService) {
		s.pieces = repo
	}
}

// VersionWithTransactionManager sets the transaction manager
func VersionWithTransactionManager(tx repository.TransactionManager) VersionServiceOption {
	return func(s *VersionService) {
		s.tx = tx
	}
}

// VersionWithIndexer sets the search indexer notified after restores
func VersionWithIndexer(indexer PieceIndexer) VersionServiceOption {
	return func(s *VersionService) {
		s.indexer = indexer
	}
}

// VersionWithRetention keeps at most n versions per piece. Zero keeps all.
func VersionWithRetention(n int) VersionServiceOption {
	return func(s *VersionService) {
		if n > 0 {
			s.retention = n
		}
	}
}

// VersionWithLogger sets the logger
func VersionWithLogger(logger *slog.Logger) VersionServiceOption {
	return func(s *VersionService) {
		s.logger = logger
	}
}

// NewVersionService creates a new version service
func NewVersionService(opts ...VersionServiceOption) *VersionService {
	s := &VersionService{logger: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VersionService) ready() error {
	if s.versions == nil {
		return errors.New("version repository not set")
	}
	if s.pieces == nil {
		return errors.New("piece repository not set")
	}
	if s.tx == nil {
		return errors.New("transaction manager not set")
	}
	return nil
}

// SnapshotPiece copies the current content of piece into a new version. It
// never touches the piece itself and joins the transaction carried by ctx.
func (s *VersionService) SnapshotPiece(ctx context.Context, piece *models.Piece, reason models.ChangeReason) (*models.PieceVersion, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown change reason %q", models.ErrValidation, reason)
	}

	version := &models.PieceVersion{
		PieceID:      piece.ID,
		ContentJSON:  piece.ContentJSON.Clone(),
		ChangeReason: reason,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		return nil, err
	}

	if s.retention > 0 {
		pruned, err := s.versions.Prune(ctx, piece.ID, s.retention)
		if err != nil {
			return nil, err
		}
		if pruned > 0 {
			s.logger.Debug("pruned piece versions", "piece_id", piece.ID, "count", pruned)
		}
	}
	return version, nil
}

// SnapshotRequest represents a request to snapshot a piece explicitly
type SnapshotRequest struct {
	PieceID uuid.UUID
	Reason  models.ChangeReason
	UserID  *uuid.UUID
}

// Snapshot records the current content of a piece
func (s *VersionService) Snapshot(ctx context.Context, req SnapshotRequest) (*models.PieceVersion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Reason, validation.Required, validation.In(
			models.ReasonManual, models.ReasonAISuggestion, models.ReasonExport, models.ReasonValidation,
		)),
	); err != nil {
		return nil, validationError(err)
	}

	var version *models.PieceVersion
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		piece, err := loadPiece(ctx, s.pieces, req.PieceID, req.UserID)
		if err != nil {
			return err
		}
		version, err = s.SnapshotPiece(ctx, piece, req.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("piece version created", "piece_id", req.PieceID, "version_id", version.ID, "reason", req.Reason)
	return version, nil
}

// ListVersionsRequest represents a request to list the versions of a piece
type ListVersionsRequest struct {
	PieceID uuid.UUID
	Limit   int
	UserID  *uuid.UUID
}

// ListVersions returns the newest versions of a piece, content omitted
func (s *VersionService) ListVersions(ctx context.Context, req ListVersionsRequest) ([]*models.PieceVersion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := loadPiece(ctx, s.pieces, req.PieceID, req.UserID); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultVersionListLimit
	}
	if limit > maxVersionListLimit {
		limit = maxVersionListLimit
	}
	return s.versions.ListByPiece(ctx, req.PieceID, limit)
}

// GetVersionRequest represents a request to read one version
type GetVersionRequest struct {
	ID     uuid.UUID
	UserID *uuid.UUID
}

// GetVersion returns a version including its content
func (s *VersionService) GetVersion(ctx context.Context, req GetVersionRequest) (*models.PieceVersion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	version, err := s.versions.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if _, err := loadPiece(ctx, s.pieces, version.PieceID, req.UserID); err != nil {
		return nil, err
	}
	return version, nil
}

// RestoreVersionRequest represents a request to restore a version
type RestoreVersionRequest struct {
	ID       uuid.UUID
	Revision *int
	UserID   *uuid.UUID
}

// RestoreVersionResult represents the result of a restore
type RestoreVersionResult struct {
	Piece          *models.Piece
	PieceVersionID uuid.UUID
}

// RestoreVersion snapshots the current content as manual, then writes the
// version's content back to the piece.
func (s *VersionService) RestoreVersion(ctx context.Context, req RestoreVersionRequest) (*RestoreVersionResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var result RestoreVersionResult
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		version, err := s.versions.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}
		piece, err := loadPiece(ctx, s.pieces, version.PieceID, req.UserID)
		if err != nil {
			return err
		}

		expected := piece.Revision
		if req.Revision != nil {
			expected = *req.Revision
		}

		current, err := s.SnapshotPiece(ctx, piece, models.ReasonManual)
		if err != nil {
			return err
		}

		piece.ContentJSON = version.ContentJSON.Clone()
		if err := s.pieces.Update(ctx, piece, expected); err != nil {
			return err
		}

		result.Piece = piece
		result.PieceVersionID = current.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.indexer != nil {
		s.indexer.IndexPiece(result.Piece)
	}
	s.logger.Info("piece version restored",
		"piece_id", result.Piece.ID,
		"restored_version_id", req.ID,
		"snapshot_version_id", result.PieceVersionID,
	)
	return &result, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	defaultPageSize      = 10
	maxPageSize          = 100
	pieceVersionsPreview = 5
	demoUserName         = "Demo User"
)

// ArtifactRemover deletes stored export artifacts
type ArtifactRemover interface {
	Delete(ctx context.Context, key string) error
}

// PieceService handles business logic for pieces
type PieceService struct {
	pieces    repository.PieceRepository
	users     repository.UserRepository
	exports   repository.ExportRepository
	tx        repository.TransactionManager
	templates *TemplateService
	versions  *VersionService
	artifacts ArtifactRemover
	indexer   PieceIndexer
	logger    *slog.Logger
}

// PieceServiceOption is a functional option for PieceService
type PieceServiceOption func(*PieceService)

// WithPieceRepository sets the piece repository
func WithPieceRepository(repo repository.PieceRepository) PieceServiceOption {
	return func(s *PieceService) {
		s.pieces = repo
	}
}

// WithUserRepository sets the user repository
func WithUserRepository(repo repository.UserRepository) PieceServiceOption {
	return func(s *PieceService) {
		s.users = repo
	}
}

// WithExportRepository sets the export repository used to clean up artifacts
func WithExportRepository(repo repository.ExportRepository) PieceServiceOption {
	return func(s *PieceService) {
		s.exports = repo
	}
}

// WithTransactionManager sets the transaction manager
func WithTransactionManager(tx repository.TransactionManager) PieceServiceOption {
	return func(s *PieceService) {
		s.tx = tx
	}
}

// WithTemplateService sets the template resolver
func WithTemplateService(templates *TemplateService) PieceServiceOption {
	return func(s *PieceService) {
		s.templates = templates
	}
}

// WithVersionService sets the version service used for manual snapshots
func WithVersionService(versions *VersionService) PieceServiceOption {
	return func(s *PieceService) {
		s.versions = versions
	}
}

// WithArtifactStorage sets the object storage holding export artifacts
func WithArtifactStorage(artifacts ArtifactRemover) PieceServiceOption {
	return func(s *PieceService) {
		s.artifacts = artifacts
	}
}

// WithIndexer sets the search indexer
func WithIndexer(indexer PieceIndexer) PieceServiceOption {
	return func(s *PieceService) {
		s.indexer = indexer
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) PieceServiceOption {
	return func(s *PieceService) {
		s.logger = logger
	}
}

// NewPieceService creates a new piece service
func NewPieceService(opts ...PieceServiceOption) *PieceService {
	s := &PieceService{logger: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PieceService) index(p *models.Piece) {
	if s.indexer != nil {
		s.indexer.IndexPiece(p)
	}
}

// CreatePieceRequest represents a request to create a piece
type CreatePieceRequest struct {
	TemplateID  string
	Title       *string
	ContentJSON models.JSONB
	InputsJSON  models.JSONB
	ThesesJSON  models.JSONB
	JurisJSON   models.JSONB
	UserID      *uuid.UUID
}

// CreatePiece creates a draft piece. The owner is the caller, else the first
// user, else a demo user created on the spot.
func (s *PieceService) CreatePiece(ctx context.Context, req CreatePieceRequest) (*models.Piece, error) {
	if s.pieces == nil {
		return nil, errors.New("piece repository not set")
	}
	if s.users == nil {
		return nil, errors.New("user repository not set")
	}
	if s.templates == nil {
		return nil, errors.New("template service not set")
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.TemplateID, validation.Required),
	); err != nil {
		return nil, validationError(err)
	}

	template, err := s.templates.ResolveTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	owner, err := s.resolveOwner(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	piece := &models.Piece{
		UserID:      owner,
		TemplateID:  template.ID,
		Title:       trimTitle(req.Title),
		ContentJSON: req.ContentJSON,
		InputsJSON:  req.InputsJSON,
		ThesesJSON:  req.ThesesJSON,
		JurisJSON:   req.JurisJSON,
		Status:      models.PieceStatusDraft,
	}
	if err := s.pieces.Create(ctx, piece); err != nil {
		return nil, err
	}
	piece.Template = &models.TemplateRef{ID: template.ID, Title: template.Title, Category: template.Category}

	s.index(piece)
	s.logger.Info("piece created", "piece_id", piece.ID, "template_id", template.ID, "user_id", owner)
	return piece, nil
}

func trimTitle(title *string) *string {
	if title == nil {
		return nil
	}
	t := strings.TrimSpace(*title)
	if t == "" {
		return nil
	}
	return &t
}

func (s *PieceService) resolveOwner(ctx context.Context, userID *uuid.UUID) (uuid.UUID, error) {
	if userID != nil {
		if _, err := s.users.GetByID(ctx, *userID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return uuid.Nil, fmt.Errorf("unknown user: %w", models.ErrUnauthorized)
			}
			return uuid.Nil, err
		}
		return *userID, nil
	}

	user, err := s.users.First(ctx)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return uuid.Nil, err
	}

	demo := &models.User{Email: models.DemoUserEmail, Name: demoUserName}
	if err := s.users.Create(ctx, demo); err != nil {
		// lost a race with another first request
		if existing, getErr := s.users.GetByEmail(ctx, models.DemoUserEmail); getErr == nil {
			return existing.ID, nil
		}
		return uuid.Nil, err
	}
	s.logger.Info("demo user created", "user_id", demo.ID)
	return demo.ID, nil
}

// GetPieceRequest represents a request to get a piece
type GetPieceRequest struct {
	ID     uuid.UUID
	UserID *uuid.UUID
}

// GetPiece returns a piece with its template and latest versions
func (s *PieceService) GetPiece(ctx context.Context, req GetPieceRequest) (*models.Piece, error) {
	if s.pieces == nil {
		return nil, errors.New("piece repository not set")
	}
	if s.versions == nil {
		return nil, errors.New("version service not set")
	}

	piece, err := loadPiece(ctx, s.pieces, req.ID, req.UserID)
	if err != nil {
		return nil, err
	}
	versions, err := s.versions.versions.ListByPiece(ctx, piece.ID, pieceVersionsPreview)
	if err != nil {
		return nil, err
	}
	piece.Versions = versions
	return piece, nil
}

// ListPiecesRequest represents a request to list pieces
type ListPiecesRequest struct {
	UserID *uuid.UUID
	Status string
	Search string
	Page   int
	Limit  int
}

// ListPiecesResult represents one page of pieces
type ListPiecesResult struct {
	Pieces     []*models.Piece `json:"pieces"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
}

// ListPieces returns one page of pieces, newest first
func (s *PieceService) ListPieces(ctx context.Context, req ListPiecesRequest) (*ListPiecesResult, error) {
	if s.pieces == nil {
		return nil, errors.New("piece repository not set")
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := models.PieceFilter{
		UserID: req.UserID,
		Search: strings.TrimSpace(req.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if status := strings.TrimSpace(req.Status); status != "" && status != "all" {
		st := models.PieceStatus(status)
		filter.Status = &st
	}

	pieces, total, err := s.pieces.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListPiecesResult{
		Pieces:     pieces,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// UpdatePieceRequest represents a request to update a piece. Nil fields are
// left unchanged.
type UpdatePieceRequest struct {
	ID            uuid.UUID
	Title         *string
	ContentJSON   *models.JSONB
	CreateVersion bool
	Revision      *int
	UserID        *uuid.UUID
}

// UpdatePieceResult represents the result of updating a piece
type UpdatePieceResult struct {
	Piece          *models.Piece
	PieceVersionID *uuid.UUID
}

// UpdatePiece writes title and content. With CreateVersion the prior content
// is snapshotted as manual in the same transaction.
func (s *PieceService) UpdatePiece(ctx context.Context, req UpdatePieceRequest) (*UpdatePieceResult, error) {
	if s.pieces == nil {
		return nil, errors.New("piece repository not set")
	}
	if s.tx == nil {
		return nil, errors.New("transaction manager not set")
	}
	if s.versions == nil {
		return nil, errors.New("version service not set")
	}
	if req.Title == nil && req.ContentJSON == nil {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrValidation)
	}

	var result UpdatePieceResult
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		piece, err := loadPiece(ctx, s.pieces, req.ID, req.UserID)
		if err != nil {
			return err
		}

		expected := piece.Revision
		if req.Revision != nil {
			expected = *req.Revision
		}

		if req.CreateVersion && !piece.ContentJSON.IsNull() {
			version, err := s.versions.SnapshotPiece(ctx, piece, models.ReasonManual)
			if err != nil {
				return err
			}
			result.PieceVersionID = &version.ID
		}

		if req.Title != nil {
			piece.Title = trimTitle(req.Title)
		}
		if req.ContentJSON != nil {
			piece.ContentJSON = req.ContentJSON.Clone()
		}
		if err := s.pieces.Update(ctx, piece, expected); err != nil {
			return err
		}
		result.Piece = piece
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.index(result.Piece)
	s.logger.Info("piece updated",
		"piece_id", req.ID,
		"revision", result.Piece.Revision,
		"versioned", result.PieceVersionID != nil,
	)
	return &result, nil
}

// DeletePieceRequest represents a request to delete a piece
type DeletePieceRequest struct {
	ID     uuid.UUID
	UserID *uuid.UUID
}

// DeletePiece removes a piece with its history. Stored export artifacts and
// the search document are removed best-effort afterwards.
func (s *PieceService) DeletePiece(ctx context.Context, req DeletePieceRequest) error {
	if s.pieces == nil {
		return errors.New("piece repository not set")
	}

	if _, err := loadPiece(ctx, s.pieces, req.ID, req.UserID); err != nil {
		return err
	}

	var artifacts []*models.Export
	if s.exports != nil {
		exports, err := s.exports.ListByPiece(ctx, req.ID)
		if err != nil {
			return err
		}
		artifacts = exports
	}

	if err := s.pieces.Delete(ctx, req.ID); err != nil {
		return err
	}

	if s.artifacts != nil {
		for _, e := range artifacts {
			if err := s.artifacts.Delete(ctx, e.StoragePath); err != nil {
				s.logger.Warn("failed to delete export artifact", "export_id", e.ID, "path", e.StoragePath, "error", err)
			}
		}
	}
	if s.indexer != nil {
		s.indexer.DeletePiece(req.ID)
	}

	s.logger.Info("piece deleted", "piece_id", req.ID, "artifacts", len(artifacts))
	return nil
}

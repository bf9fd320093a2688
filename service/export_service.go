package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"lexdraft-backend/models"
	"lexdraft-backend/render"
	"lexdraft-backend/repository"
	"lexdraft-backend/storage"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// PDFRenderer converts an HTML document to PDF
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// ExportService renders pieces and keeps the artifacts in object storage
type ExportService struct {
	pieces   repository.PieceRepository
	exports  repository.ExportRepository
	tx       repository.TransactionManager
	versions *VersionService
	storage  storage.Storage
	pdf      PDFRenderer
	logger   *slog.Logger
}

// ExportServiceOption is a functional option for ExportService
type ExportServiceOption func(*ExportService)

// ExportWithPieceRepository sets the piece repository
func ExportWithPieceRepository(repo repository.PieceRepository) ExportServiceOption {
	return func(s *ExportService) {
		s.pieces = repo
	}
}

// ExportWithExportRepository sets the export repository
func ExportWithExportRepository(repo repository.ExportRepository) ExportServiceOption {
	return func(s *ExportService) {
		s.exports = repo
	}
}

// ExportWithTransactionManager sets the transaction manager
func ExportWithTransactionManager(tx repository.TransactionManager) ExportServiceOption {
	return func(s *ExportService) {
		s.tx = tx
	}
}

// ExportWithVersionService sets the version service
func ExportWithVersionService(versions *VersionService) ExportServiceOption {
	return func(s *ExportService) {
		s.versions = versions
	}
}

// ExportWithStorage sets the object storage
func ExportWithStorage(st storage.Storage) ExportServiceOption {
	return func(s *ExportService) {
		s.storage = st
	}
}

// ExportWithPDFRenderer sets the PDF renderer
func ExportWithPDFRenderer(pdf PDFRenderer) ExportServiceOption {
	return func(s *ExportService) {
		s.pdf = pdf
	}
}

// ExportWithLogger sets the logger
func ExportWithLogger(logger *slog.Logger) ExportServiceOption {
	return func(s *ExportService) {
		s.logger = logger
	}
}

// NewExportService creates a new export service
func NewExportService(opts ...ExportServiceOption) *ExportService {
	s := &ExportService{logger: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExportService) ready() error {
	if s.pieces == nil {
		return errors.New("piece repository not set")
	}
	if s.exports == nil {
		return errors.New("export repository not set")
	}
	if s.tx == nil {
		return errors.New("transaction manager not set")
	}
	if s.versions == nil {
		return errors.New("version service not set")
	}
	if s.storage == nil {
		return errors.New("storage not set")
	}
	return nil
}

// ExportPieceRequest represents a request to export a piece
type ExportPieceRequest struct {
	PieceID uuid.UUID
	Format  models.ExportFormat
	UserID  *uuid.UUID
}

// ExportPiece snapshots the piece as export, renders it and stores the artifact
func (s *ExportService) ExportPiece(ctx context.Context, req ExportPieceRequest) (*models.Export, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Format, validation.Required, validation.In(models.ExportHTML, models.ExportPDF)),
	); err != nil {
		return nil, validationError(err)
	}
	if req.Format == models.ExportPDF && s.pdf == nil {
		return nil, errors.New("pdf renderer not set")
	}

	var piece *models.Piece
	var version *models.PieceVersion
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		piece, err = loadPiece(ctx, s.pieces, req.PieceID, req.UserID)
		if err != nil {
			return err
		}
		version, err = s.versions.SnapshotPiece(ctx, piece, models.ReasonExport)
		return err
	})
	if err != nil {
		return nil, err
	}

	html, err := render.DocumentHTML(piece)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	data := []byte(html)
	mimeType := "text/html; charset=utf-8"
	if req.Format == models.ExportPDF {
		data, err = s.pdf.RenderPDF(ctx, html)
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		mimeType = "application/pdf"
	}

	ext := string(req.Format)
	key := storage.ExportKey(piece.ID, ext)
	if err := s.storage.Upload(ctx, key, mimeType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}

	export := &models.Export{
		PieceID:        piece.ID,
		PieceVersionID: &version.ID,
		Format:         req.Format,
		Filename:       render.SanitizeFilename(piece.DisplayTitle()) + "." + ext,
		MimeType:       mimeType,
		Size:           int64(len(data)),
		StoragePath:    key,
	}
	if err := s.exports.Create(ctx, export); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("failed to remove orphaned export", "path", key, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("piece exported",
		"piece_id", piece.ID,
		"export_id", export.ID,
		"format", req.Format,
		"size", export.Size,
	)
	return export, nil
}

// ListExportsRequest represents a request to list the exports of a piece
type ListExportsRequest struct {
	PieceID uuid.UUID
	UserID  *uuid.UUID
}

// ListExports returns the exports of a piece, newest first
func (s *ExportService) ListExports(ctx context.Context, req ListExportsRequest) ([]*models.Export, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := loadPiece(ctx, s.pieces, req.PieceID, req.UserID); err != nil {
		return nil, err
	}
	return s.exports.ListByPiece(ctx, req.PieceID)
}

// DownloadExportRequest represents a request to download an export
type DownloadExportRequest struct {
	ID     uuid.UUID
	UserID *uuid.UUID
}

// DownloadExport opens a stored artifact. The caller closes the reader.
func (s *ExportService) DownloadExport(ctx context.Context, req DownloadExportRequest) (*models.Export, io.ReadCloser, error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}
	export, err := s.exports.GetByID(ctx, req.ID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := loadPiece(ctx, s.pieces, export.PieceID, req.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, fmt.Errorf("export: %w", models.ErrNotFound)
		}
		return nil, nil, err
	}

	reader, err := s.storage.Download(ctx, export.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return export, reader, nil
}

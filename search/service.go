package search

import (
	"context"
	"log/slog"
	"sync"

	"lexdraft-backend/models"

	"github.com/google/uuid"
)

// Index is a full-text piece index
type Index interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexPieces(records []PieceRecord) error
	DeletePiece(id string) error
}

// PieceReader is the store access used for fallback queries and reindexing
type PieceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Piece, error)
	List(ctx context.Context, filter models.PieceFilter) ([]*models.Piece, int, error)
}

// Service is the facade that tries the index first and falls back to the store.
type Service struct {
	index  Index
	pieces PieceReader
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewService creates a search service. index may be nil when Meilisearch is
// not configured.
func NewService(index Index, pieces PieceReader, logger *slog.Logger) *Service {
	return &Service{index: index, pieces: pieces, logger: logger}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search tries the index if healthy, otherwise falls back to a title filter.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	if s.indexReady() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: results, Total: total, Query: q.Text, Source: "index"}
		}
		s.logger.Warn("search index error, falling back to store", "error", err)
	}

	filter := models.PieceFilter{Search: q.Text, Limit: q.Limit, Offset: q.Offset}
	if q.UserID != "" {
		if id, err := uuid.Parse(q.UserID); err == nil {
			filter.UserID = &id
		}
	}
	pieces, total, err := s.pieces.List(ctx, filter)
	if err != nil {
		s.logger.Error("search fallback failed", "error", err)
		return Response{Results: []Result{}, Query: q.Text, Source: "store"}
	}

	results := make([]Result, 0, len(pieces))
	for _, p := range pieces {
		r := Result{ID: p.ID.String(), Title: p.DisplayTitle(), Status: string(p.Status)}
		if p.Template != nil {
			r.TemplateTitle = p.Template.Title
			r.Category = p.Template.Category
		}
		results = append(results, r)
	}
	return Response{Results: results, Total: total, Query: q.Text, Source: "store"}
}

// IndexPiece indexes a piece (fire-and-forget).
func (s *Service) IndexPiece(p *models.Piece) {
	if !s.indexReady() {
		return
	}
	record := RecordFromPiece(p)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.IndexPieces([]PieceRecord{record}); err != nil {
			s.logger.Warn("index piece failed", "piece_id", record.ID, "error", err)
		}
	}()
}

// DeletePiece removes a piece from the index (fire-and-forget).
func (s *Service) DeletePiece(id uuid.UUID) {
	if !s.indexReady() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.DeletePiece(id.String()); err != nil {
			s.logger.Warn("delete piece from index failed", "piece_id", id, "error", err)
		}
	}()
}

// Reindex pushes every stored piece to the index, one page at a time.
func (s *Service) Reindex(ctx context.Context, batchSize int) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	indexed := 0
	for offset := 0; ; offset += batchSize {
		pieces, total, err := s.pieces.List(ctx, models.PieceFilter{Limit: batchSize, Offset: offset})
		if err != nil {
			return indexed, err
		}
		records := make([]PieceRecord, 0, len(pieces))
		for _, p := range pieces {
			// listings omit content
			full, err := s.pieces.GetByID(ctx, p.ID)
			if err != nil {
				return indexed, err
			}
			records = append(records, RecordFromPiece(full))
		}
		if err := s.index.IndexPieces(records); err != nil {
			return indexed, err
		}
		indexed += len(records)
		if len(pieces) == 0 || offset+batchSize >= total {
			return indexed, nil
		}
	}
}

// Wait blocks until pending index updates have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

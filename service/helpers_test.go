package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"lexdraft-backend/catalog"
	"lexdraft-backend/llm"
	"lexdraft-backend/models"
	"lexdraft-backend/repository"
	"lexdraft-backend/repository/sqlite"
	"lexdraft-backend/storage"

	"github.com/google/uuid"
)

type fakeProvider struct {
	mu        sync.Mutex
	chunks    []string
	startErr  error
	streamErr error
	prompts   []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) StreamText(ctx context.Context, prompt string) (llm.TextStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if p.startErr != nil {
		return nil, p.startErr
	}
	return &fakeStream{chunks: append([]string(nil), p.chunks...), err: p.streamErr}, nil
}

func (p *fakeProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

type fakeStream struct {
	chunks []string
	err    error
}

func (s *fakeStream) Next() (string, error) {
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error { return nil }

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []uuid.UUID
	deleted []uuid.UUID
}

func (r *recordingIndexer) IndexPiece(p *models.Piece) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, p.ID)
}

func (r *recordingIndexer) DeletePiece(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

type fakePDF struct{}

func (fakePDF) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	return []byte("%PDF-1.4 " + fmt.Sprint(len(html))), nil
}

type testEnv struct {
	db          *sql.DB
	store       *repository.Store
	provider    *fakeProvider
	indexer     *recordingIndexer
	artifacts   storage.Storage
	templates   *TemplateService
	versions    *VersionService
	pieces      *PieceService
	suggestions *SuggestionService
	drafts      *DraftService
	exports     *ExportService
	wizard      *WizardService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	store, _ := openStore(t)
	return store
}

func openStore(t *testing.T) (*repository.Store, *sql.DB) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "lexdraft.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := sqlite.NewStore(db)

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	if _, err := cat.Seed(context.Background(), store.Templates, testLogger()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return store, db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, db := openStore(t)
	logger := testLogger()

	artifacts, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	cat, _ := catalog.Load()

	env := &testEnv{
		db:        db,
		store:     store,
		provider:  &fakeProvider{chunks: []string{"Texto ", "formal."}},
		indexer:   &recordingIndexer{},
		artifacts: artifacts,
	}

	env.templates = NewTemplateService(
		TemplateWithRepository(store.Templates),
		TemplateWithCatalog(cat),
		TemplateWithLogger(logger),
	)
	env.versions = NewVersionService(
		VersionWithVersionRepository(store.Versions),
		VersionWithPieceRepository(store.Pieces),
		VersionWithTransactionManager(store.Tx),
		VersionWithIndexer(env.indexer),
		VersionWithLogger(logger),
	)
	env.pieces = NewPieceService(
		WithPieceRepository(store.Pieces),
		WithUserRepository(store.Users),
		WithExportRepository(store.Exports),
		WithTransactionManager(store.Tx),
		WithTemplateService(env.templates),
		WithVersionService(env.versions),
		WithArtifactStorage(artifacts),
		WithIndexer(env.indexer),
		WithLogger(logger),
	)
	env.suggestions = NewSuggestionService(
		SuggestionWithSuggestionRepository(store.Suggestions),
		SuggestionWithPieceRepository(store.Pieces),
		SuggestionWithTransactionManager(store.Tx),
		SuggestionWithVersionService(env.versions),
		SuggestionWithProvider(env.provider),
		SuggestionWithIndexer(env.indexer),
		SuggestionWithLogger(logger),
	)
	env.drafts = NewDraftService(
		DraftWithPieceRepository(store.Pieces),
		DraftWithTemplateRepository(store.Templates),
		DraftWithGenerationJobRepository(store.Jobs),
		DraftWithTransactionManager(store.Tx),
		DraftWithVersionService(env.versions),
		DraftWithProvider(env.provider),
		DraftWithIndexer(env.indexer),
		DraftWithLogger(logger),
	)
	env.exports = NewExportService(
		ExportWithPieceRepository(store.Pieces),
		ExportWithExportRepository(store.Exports),
		ExportWithTransactionManager(store.Tx),
		ExportWithVersionService(env.versions),
		ExportWithStorage(artifacts),
		ExportWithPDFRenderer(fakePDF{}),
		ExportWithLogger(logger),
	)
	env.wizard = NewWizardService(WizardWithProvider(env.provider), WizardWithLogger(logger))
	return env
}

// doc builds a document with one paragraph per argument
func doc(paragraphs ...string) models.JSONB {
	blocks := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		blocks = append(blocks, fmt.Sprintf(`{"type":"paragraph","content":[{"type":"text","text":%q}]}`, p))
	}
	return models.JSONB(`{"type":"doc","content":[` + strings.Join(blocks, ",") + `]}`)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func (e *testEnv) createPiece(t *testing.T, title string, content models.JSONB) *models.Piece {
	t.Helper()
	req := CreatePieceRequest{TemplateID: "1", ContentJSON: content}
	if title != "" {
		req.Title = &title
	}
	piece, err := e.pieces.CreatePiece(context.Background(), req)
	if err != nil {
		t.Fatalf("CreatePiece: %v", err)
	}
	return piece
}

func (e *testEnv) versionsOf(t *testing.T, pieceID uuid.UUID) []*models.PieceVersion {
	t.Helper()
	versions, err := e.store.Versions.ListByPiece(context.Background(), pieceID, 100)
	if err != nil {
		t.Fatalf("ListByPiece: %v", err)
	}
	return versions
}

func (e *testEnv) suggestionCount(t *testing.T) int {
	t.Helper()
	var n int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM ai_suggestions`).Scan(&n); err != nil {
		t.Fatalf("count suggestions: %v", err)
	}
	return n
}

// drain reads a suggestion stream to the end
func drain(h *SuggestionHandle) (string, error) {
	for {
		_, err := h.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return h.Text(), nil
		}
		if err != nil {
			return h.Text(), err
		}
	}
}

// suggest requests a suggestion for span [from, to) and completes its stream
func (e *testEnv) suggest(t *testing.T, pieceID uuid.UUID, from, to int, original string) *models.AiSuggestion {
	t.Helper()
	ctx := context.Background()
	h, err := e.suggestions.RequestSuggestion(ctx, RequestSuggestionRequest{
		PieceID:       pieceID.String(),
		ActionType:    models.ActionFormalize,
		SelectionFrom: intPtr(from),
		SelectionTo:   intPtr(to),
		OriginalText:  original,
	})
	if err != nil {
		t.Fatalf("RequestSuggestion: %v", err)
	}
	_, streamErr := drain(h)
	if err := h.Finish(ctx, streamErr); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	s, err := e.store.Suggestions.GetByID(ctx, *h.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return s
}

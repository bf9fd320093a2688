package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"
	"lexdraft-backend/repository/sqlite"
)

type fakeIndex struct {
	mu      sync.Mutex
	healthy bool
	err     error
	hits    []Result
	indexed []PieceRecord
	deleted []string
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(q Query) ([]Result, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.hits, len(f.hits), nil
}

func (f *fakeIndex) IndexPieces(records []PieceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, records...)
	return nil
}

func (f *fakeIndex) DeletePiece(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T, titles ...string) *repository.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := sqlite.NewStore(db)
	ctx := context.Background()

	user := &models.User{Email: "ana@example.com", Name: "Ana"}
	if err := store.Users.Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	tpl := &models.Template{CatalogKey: "24", Title: "Ação de Despejo", Category: "Cível", Tags: models.StringList{}}
	if err := store.Templates.Upsert(ctx, tpl); err != nil {
		t.Fatal(err)
	}
	for _, title := range titles {
		title := title
		p := &models.Piece{
			UserID:      user.ID,
			TemplateID:  tpl.ID,
			Title:       &title,
			ContentJSON: models.JSONB(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"O locatário deixou de pagar."}]}]}`),
		}
		if err := store.Pieces.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestSearchFallsBackToStore(t *testing.T) {
	store := newStore(t, "Despejo do Sr. João", "Cobrança de aluguel")

	tests := []struct {
		name  string
		index Index
	}{
		{"no index", nil},
		{"unhealthy index", &fakeIndex{healthy: false}},
		{"failing index", &fakeIndex{healthy: true, err: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.index, store.Pieces, testLogger())
			resp := svc.Search(context.Background(), Query{Text: "despejo"})
			if resp.Source != "store" {
				t.Errorf("Source = %q, want store", resp.Source)
			}
			if resp.Total != 1 || len(resp.Results) != 1 {
				t.Fatalf("got %d results (total %d), want 1", len(resp.Results), resp.Total)
			}
			if r := resp.Results[0]; r.Title != "Despejo do Sr. João" || r.Category != "Cível" {
				t.Errorf("result = %+v", r)
			}
		})
	}
}

func TestSearchPrefersHealthyIndex(t *testing.T) {
	store := newStore(t)
	idx := &fakeIndex{healthy: true, hits: []Result{{ID: "x", Title: "Despejo"}}}
	svc := NewService(idx, store.Pieces, testLogger())

	resp := svc.Search(context.Background(), Query{Text: "despejo"})
	if resp.Source != "index" || len(resp.Results) != 1 || resp.Results[0].ID != "x" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestIndexAndDeleteAreAsync(t *testing.T) {
	store := newStore(t, "Despejo")
	idx := &fakeIndex{healthy: true}
	svc := NewService(idx, store.Pieces, testLogger())

	pieces, _, err := store.Pieces.List(context.Background(), models.PieceFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	full, _ := store.Pieces.GetByID(context.Background(), pieces[0].ID)
	svc.IndexPiece(full)
	svc.DeletePiece(full.ID)
	svc.Wait()

	if len(idx.indexed) != 1 || idx.indexed[0].Text != "O locatário deixou de pagar." {
		t.Errorf("indexed = %+v", idx.indexed)
	}
	if len(idx.deleted) != 1 || idx.deleted[0] != full.ID.String() {
		t.Errorf("deleted = %v", idx.deleted)
	}

	unhealthy := &fakeIndex{}
	NewService(unhealthy, store.Pieces, testLogger()).IndexPiece(full)
	if len(unhealthy.indexed) != 0 {
		t.Error("unhealthy index received a document")
	}
}

func TestReindexPagesThroughStore(t *testing.T) {
	store := newStore(t, "a", "b", "c", "d", "e")
	idx := &fakeIndex{healthy: true}
	svc := NewService(idx, store.Pieces, testLogger())

	n, err := svc.Reindex(context.Background(), 2)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n != 5 || len(idx.indexed) != 5 {
		t.Errorf("reindexed %d, index has %d", n, len(idx.indexed))
	}
	for _, r := range idx.indexed {
		if r.Text == "" || r.TemplateTitle != "Ação de Despejo" {
			t.Errorf("record missing content: %+v", r)
		}
	}
}

func TestRecordFromPieceToleratesBadContent(t *testing.T) {
	p := &models.Piece{ContentJSON: models.JSONB(`{"type":"paragraph"}`), Template: &models.TemplateRef{Title: "Cobrança"}}
	r := RecordFromPiece(p)
	if r.Text != "" || r.Title != "Cobrança" {
		t.Errorf("record = %+v", r)
	}
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func seedPiece(t *testing.T, store *repository.Store, title string) *models.Piece {
	t.Helper()
	ctx := context.Background()

	user, err := store.Users.First(ctx)
	if errors.Is(err, models.ErrNotFound) {
		user = &models.User{Email: "ana@example.com", Name: "Ana"}
		if err := store.Users.Create(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}
	} else if err != nil {
		t.Fatalf("first user: %v", err)
	}

	tpl, err := store.Templates.GetByCatalogKey(ctx, "1")
	if errors.Is(err, models.ErrNotFound) {
		tpl = &models.Template{CatalogKey: "1", Title: "Petição Inicial Cível", Category: "Cível"}
		if err := store.Templates.Upsert(ctx, tpl); err != nil {
			t.Fatalf("upsert template: %v", err)
		}
	} else if err != nil {
		t.Fatalf("template: %v", err)
	}

	p := &models.Piece{
		UserID:      user.ID,
		TemplateID:  tpl.ID,
		Title:       &title,
		ContentJSON: models.JSONB(`{"type":"doc","content":[]}`),
	}
	if err := store.Pieces.Create(ctx, p); err != nil {
		t.Fatalf("create piece: %v", err)
	}
	return p
}

func TestPieceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedPiece(t, store, "Ação de Cobrança")

	got, err := store.Pieces.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.PieceStatusDraft {
		t.Errorf("Status = %q, want draft", got.Status)
	}
	if got.Revision != 1 {
		t.Errorf("Revision = %d, want 1", got.Revision)
	}
	if string(got.ContentJSON) != `{"type":"doc","content":[]}` {
		t.Errorf("ContentJSON = %s", got.ContentJSON)
	}
	if got.Template == nil || got.Template.Title != "Petição Inicial Cível" {
		t.Errorf("Template = %+v", got.Template)
	}
	if got.InputsJSON != nil {
		t.Errorf("InputsJSON = %s, want nil", got.InputsJSON)
	}
}

func TestPieceUpdateRevisionGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedPiece(t, store, "Contestação")

	p.ContentJSON = models.JSONB(`{"type":"doc"}`)
	if err := store.Pieces.Update(ctx, p, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Revision != 2 {
		t.Errorf("Revision = %d, want 2", p.Revision)
	}

	err := store.Pieces.Update(ctx, p, 1)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("stale Update error = %v, want ErrConflict", err)
	}
}

func TestPieceListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPiece(t, store, "Ação de Atropelamento")
	seedPiece(t, store, "AÇÃO DE DESPEJO")
	seedPiece(t, store, "Habeas Corpus 100%")

	tests := []struct {
		name   string
		search string
		want   int
	}{
		{"case insensitive ascii", "atropelamento", 1},
		{"case insensitive accents", "ação", 2},
		{"wildcards are literal", "%", 1},
		{"underscore literal", "_", 0},
		{"no filter", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces, total, err := store.Pieces.List(ctx, models.PieceFilter{Search: tt.search, Limit: 10})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if total != tt.want || len(pieces) != tt.want {
				t.Errorf("total = %d, len = %d, want %d", total, len(pieces), tt.want)
			}
		})
	}

	completed := models.PieceStatusCompleted
	_, total, err := store.Pieces.List(ctx, models.PieceFilter{Status: &completed, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 {
		t.Errorf("completed total = %d, want 0", total)
	}
}

func TestVersionsNewestFirstAndPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedPiece(t, store, "Recurso")

	var ids []string
	for i := 0; i < 4; i++ {
		v := &models.PieceVersion{PieceID: p.ID, ChangeReason: models.ReasonManual}
		if err := store.Versions.Create(ctx, v); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, v.ID.String())
	}

	list, err := store.Versions.ListByPiece(ctx, p.ID, 10)
	if err != nil {
		t.Fatalf("ListByPiece: %v", err)
	}
	if len(list) != 4 || list[0].ID.String() != ids[3] {
		t.Fatalf("ListByPiece order wrong: got first %v", list[0].ID)
	}

	n, err := store.Versions.Prune(ctx, p.ID, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	list, _ = store.Versions.ListByPiece(ctx, p.ID, 10)
	if len(list) != 2 || list[1].ID.String() != ids[2] {
		t.Errorf("after prune got %d versions", len(list))
	}
}

func TestSuggestionTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedPiece(t, store, "Petição")

	from, to := 1, 5
	s := &models.AiSuggestion{
		PieceID:       p.ID,
		ActionType:    models.ActionFormalize,
		SelectionFrom: &from,
		SelectionTo:   &to,
		OriginalText:  "oi",
	}
	if err := store.Suggestions.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale := 7
	_, err := store.Suggestions.Transition(ctx, models.SuggestionTransition{
		ID: s.ID, To: models.SuggestionAccepted, ExpectedRevision: &stale,
	})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("stale revision error = %v, want ErrConflict", err)
	}

	text := "Olá"
	got, err := store.Suggestions.Transition(ctx, models.SuggestionTransition{
		ID: s.ID, To: models.SuggestionRejected, SuggestedText: &text,
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != models.SuggestionRejected || got.SuggestedText != "Olá" || got.Revision != 2 {
		t.Errorf("got %+v", got)
	}
	if *got.SelectionFrom != 1 || *got.SelectionTo != 5 {
		t.Errorf("span = %d..%d", *got.SelectionFrom, *got.SelectionTo)
	}

	_, err = store.Suggestions.Transition(ctx, models.SuggestionTransition{ID: s.ID, To: models.SuggestionAccepted})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("terminal transition error = %v, want ErrInvalidState", err)
	}
	if err := store.Suggestions.SetSuggestedText(ctx, s.ID, "x"); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("SetSuggestedText on terminal = %v, want ErrInvalidState", err)
	}
}

func TestFailPendingBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedPiece(t, store, "Petição")

	s := &models.AiSuggestion{PieceID: p.ID, ActionType: models.ActionReduce, OriginalText: "texto"}
	if err := store.Suggestions.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	done := &models.AiSuggestion{PieceID: p.ID, ActionType: models.ActionReduce, OriginalText: "texto"}
	if err := store.Suggestions.Create(ctx, done); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Suggestions.SetSuggestedText(ctx, done.ID, "resumo"); err != nil {
		t.Fatalf("SetSuggestedText: %v", err)
	}

	n, err := store.Suggestions.FailPendingBefore(ctx, time.Now().Add(-time.Hour), "abandoned")
	if err != nil || n != 0 {
		t.Fatalf("FailPendingBefore(past) = %d, %v", n, err)
	}
	n, err = store.Suggestions.FailPendingBefore(ctx, time.Now().Add(time.Second), "abandoned")
	if err != nil || n != 1 {
		t.Fatalf("FailPendingBefore(future) = %d, %v", n, err)
	}
	got, _ := store.Suggestions.GetByID(ctx, s.ID)
	if got.Status != models.SuggestionFailed || got.ErrorMessage == nil || *got.ErrorMessage != "abandoned" {
		t.Errorf("got status %q", got.Status)
	}
	kept, _ := store.Suggestions.GetByID(ctx, done.ID)
	if kept.Status != models.SuggestionPending || kept.GeneratedAt == nil {
		t.Errorf("generated suggestion status %q generatedAt %v", kept.Status, kept.GeneratedAt)
	}
}

func TestTransactionRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedPiece(t, store, "Petição")

	boom := errors.New("boom")
	err := store.Tx.ExecTx(ctx, func(ctx context.Context) error {
		v := &models.PieceVersion{PieceID: p.ID, ChangeReason: models.ReasonManual}
		if err := store.Versions.Create(ctx, v); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx error = %v", err)
	}

	list, err := store.Versions.ListByPiece(ctx, p.ID, 10)
	if err != nil {
		t.Fatalf("ListByPiece: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("versions after rollback = %d, want 0", len(list))
	}
}

func TestDeleteCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedPiece(t, store, "Petição")

	v := &models.PieceVersion{PieceID: p.ID, ChangeReason: models.ReasonExport}
	if err := store.Versions.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Pieces.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Versions.GetByID(ctx, v.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("version after delete err = %v, want ErrNotFound", err)
	}
	if err := store.Pieces.Delete(ctx, p.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

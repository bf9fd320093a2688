package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lexdraft-backend/models"

	"github.com/google/uuid"
)

func TestCreatePatchAndListVersions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	piece, err := env.pieces.CreatePiece(ctx, CreatePieceRequest{TemplateID: "1"})
	if err != nil {
		t.Fatalf("CreatePiece: %v", err)
	}
	if piece.Status != models.PieceStatusDraft || piece.Template == nil || piece.Template.Title != "Abertura de Processo Administrativo" {
		t.Fatalf("unexpected piece %+v", piece)
	}
	if piece.DisplayTitle() != "Abertura de Processo Administrativo" {
		t.Errorf("display title = %q", piece.DisplayTitle())
	}

	first := doc("Primeira versão")
	if _, err := env.pieces.UpdatePiece(ctx, UpdatePieceRequest{ID: piece.ID, ContentJSON: &first}); err != nil {
		t.Fatalf("UpdatePiece: %v", err)
	}

	second := doc("Segunda versão")
	res, err := env.pieces.UpdatePiece(ctx, UpdatePieceRequest{ID: piece.ID, ContentJSON: &second, CreateVersion: true})
	if err != nil {
		t.Fatalf("UpdatePiece: %v", err)
	}
	if res.PieceVersionID == nil {
		t.Fatal("expected a piece version id")
	}

	versions, err := env.versions.ListVersions(ctx, ListVersionsRequest{PieceID: piece.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 || versions[0].ChangeReason != models.ReasonManual || versions[0].ID != *res.PieceVersionID {
		t.Fatalf("versions = %+v", versions)
	}
	v, err := env.versions.GetVersion(ctx, GetVersionRequest{ID: versions[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if string(v.ContentJSON) != string(first) {
		t.Errorf("snapshot = %s, want %s", v.ContentJSON, first)
	}

	got, err := env.pieces.GetPiece(ctx, GetPieceRequest{ID: piece.ID})
	if err != nil {
		t.Fatal(err)
	}
	if string(got.ContentJSON) != string(second) {
		t.Errorf("content = %s, want %s", got.ContentJSON, second)
	}
	if len(got.Versions) != 1 {
		t.Errorf("embedded versions = %d", len(got.Versions))
	}
	if got.Revision != 3 {
		t.Errorf("revision = %d, want 3", got.Revision)
	}
}

func TestCreateVersionSkippedForEmptyContent(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", nil)

	content := doc("Texto")
	res, err := env.pieces.UpdatePiece(context.Background(), UpdatePieceRequest{ID: piece.ID, ContentJSON: &content, CreateVersion: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.PieceVersionID != nil {
		t.Errorf("snapshot of empty content created: %v", res.PieceVersionID)
	}
}

func TestCreatePieceTemplateResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.pieces.CreatePiece(ctx, CreatePieceRequest{}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("blank template err = %v", err)
	}
	if _, err := env.pieces.CreatePiece(ctx, CreatePieceRequest{TemplateID: "no-such-key"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown key err = %v", err)
	}
	if _, err := env.pieces.CreatePiece(ctx, CreatePieceRequest{TemplateID: uuid.NewString()}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown uuid err = %v", err)
	}

	byKey := env.createPiece(t, "", nil)
	byID, err := env.pieces.CreatePiece(ctx, CreatePieceRequest{TemplateID: byKey.TemplateID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if byID.TemplateID != byKey.TemplateID {
		t.Errorf("template %v, want %v", byID.TemplateID, byKey.TemplateID)
	}
}

func TestCreatePieceOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createPiece(t, "", nil)
	b := env.createPiece(t, "", nil)
	if a.UserID != b.UserID {
		t.Errorf("demo user not reused: %v %v", a.UserID, b.UserID)
	}
	demo, err := env.store.Users.GetByEmail(ctx, models.DemoUserEmail)
	if err != nil {
		t.Fatalf("demo user: %v", err)
	}
	if demo.ID != a.UserID {
		t.Errorf("owner %v, want demo user %v", a.UserID, demo.ID)
	}

	unknown := uuid.New()
	_, err = env.pieces.CreatePiece(ctx, CreatePieceRequest{TemplateID: "1", UserID: &unknown})
	if !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("unknown caller err = %v", err)
	}

	user := &models.User{Email: "ana@example.com", Name: "Ana"}
	if err := env.store.Users.Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	own, err := env.pieces.CreatePiece(ctx, CreatePieceRequest{TemplateID: "1", UserID: &user.ID})
	if err != nil {
		t.Fatal(err)
	}
	if own.UserID != user.ID {
		t.Errorf("owner = %v, want %v", own.UserID, user.ID)
	}
}

func TestListPiecesPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const total = 23
	for i := 0; i < total; i++ {
		env.createPiece(t, fmt.Sprintf("Peça %02d", i), nil)
	}

	full, err := env.pieces.ListPieces(ctx, ListPiecesRequest{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if full.Total != total || len(full.Pieces) != total || full.TotalPages != 1 {
		t.Fatalf("full listing total=%d len=%d pages=%d", full.Total, len(full.Pieces), full.TotalPages)
	}

	var union []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for page := 1; ; page++ {
		res, err := env.pieces.ListPieces(ctx, ListPiecesRequest{Page: page, Limit: 5})
		if err != nil {
			t.Fatal(err)
		}
		if res.TotalPages != 5 || res.Total != total || res.Page != page {
			t.Fatalf("page %d: total=%d pages=%d", page, res.Total, res.TotalPages)
		}
		if len(res.Pieces) == 0 {
			break
		}
		for _, p := range res.Pieces {
			if seen[p.ID] {
				t.Fatalf("piece %v listed twice", p.ID)
			}
			seen[p.ID] = true
			union = append(union, p.ID)
		}
	}

	if len(union) != total {
		t.Fatalf("pages yielded %d pieces, want %d", len(union), total)
	}
	for i, p := range full.Pieces {
		if union[i] != p.ID {
			t.Fatalf("position %d: %v, want %v", i, union[i], p.ID)
		}
	}
	for i := 1; i < len(full.Pieces); i++ {
		if full.Pieces[i].CreatedAt.After(full.Pieces[i-1].CreatedAt) {
			t.Fatalf("listing not newest first at %d", i)
		}
	}
}

func TestListPiecesDefaults(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 12; i++ {
		env.createPiece(t, "", nil)
	}
	res, err := env.pieces.ListPieces(context.Background(), ListPiecesRequest{Page: -3, Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Page != 1 || len(res.Pieces) != 12 {
		t.Errorf("page=%d len=%d", res.Page, len(res.Pieces))
	}

	res, _ = env.pieces.ListPieces(context.Background(), ListPiecesRequest{})
	if len(res.Pieces) != 10 || res.TotalPages != 2 {
		t.Errorf("default page size: len=%d pages=%d", len(res.Pieces), res.TotalPages)
	}
}

func TestListPiecesSearchAndStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createPiece(t, "Atropelamento na Avenida", nil)
	env.createPiece(t, "ação por ATROPELAMENTO culposo", nil)
	env.createPiece(t, "Despejo por falta de pagamento", nil)
	env.createPiece(t, "Desconto de 100% indevido", nil)

	res, err := env.pieces.ListPieces(ctx, ListPiecesRequest{Search: "Atropelamento"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Errorf("search matched %d, want 2", res.Total)
	}

	res, _ = env.pieces.ListPieces(ctx, ListPiecesRequest{Search: "100%"})
	if res.Total != 1 {
		t.Errorf("literal %% search matched %d, want 1", res.Total)
	}
	res, _ = env.pieces.ListPieces(ctx, ListPiecesRequest{Search: "%"})
	if res.Total != 1 {
		t.Errorf("wildcard search matched %d, want 1", res.Total)
	}

	res, _ = env.pieces.ListPieces(ctx, ListPiecesRequest{Status: "completed"})
	if res.Total != 0 {
		t.Errorf("completed matched %d", res.Total)
	}
	res, _ = env.pieces.ListPieces(ctx, ListPiecesRequest{Status: "all"})
	if res.Total != 4 {
		t.Errorf("all matched %d", res.Total)
	}
	res, _ = env.pieces.ListPieces(ctx, ListPiecesRequest{Status: "draft"})
	if res.Total != 4 {
		t.Errorf("draft matched %d", res.Total)
	}
}

func TestUpdatePieceRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "Original", nil)

	content := models.JSONB(`{"type":"doc","content":[{"type":"paragraph","attrs":{"textAlign":"justify"},"content":[{"type":"text","marks":[{"type":"bold"}],"text":"Ementa"}]}]}`)
	if _, err := env.pieces.UpdatePiece(ctx, UpdatePieceRequest{ID: piece.ID, Title: strPtr("  Renomeada "), ContentJSON: &content}); err != nil {
		t.Fatal(err)
	}
	got, err := env.pieces.GetPiece(ctx, GetPieceRequest{ID: piece.ID})
	if err != nil {
		t.Fatal(err)
	}
	if string(got.ContentJSON) != string(content) {
		t.Errorf("content = %s", got.ContentJSON)
	}
	if got.Title == nil || *got.Title != "Renomeada" {
		t.Errorf("title = %v", got.Title)
	}

	if _, err := env.pieces.UpdatePiece(ctx, UpdatePieceRequest{ID: piece.ID}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty update err = %v", err)
	}
}

func TestUpdatePieceRevisionConflictRollsBackVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "", doc("um"))

	content := doc("dois")
	stale := piece.Revision + 1
	_, err := env.pieces.UpdatePiece(ctx, UpdatePieceRequest{ID: piece.ID, ContentJSON: &content, CreateVersion: true, Revision: &stale})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 0 {
		t.Errorf("versions = %d, want 0", n)
	}
}

func TestPieceOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "Sigilosa", nil)
	stranger := uuid.New()

	if _, err := env.pieces.GetPiece(ctx, GetPieceRequest{ID: piece.ID, UserID: &stranger}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetPiece err = %v", err)
	}
	if _, err := env.pieces.UpdatePiece(ctx, UpdatePieceRequest{ID: piece.ID, Title: strPtr("x"), UserID: &stranger}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("UpdatePiece err = %v", err)
	}
	if err := env.pieces.DeletePiece(ctx, DeletePieceRequest{ID: piece.ID, UserID: &stranger}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("DeletePiece err = %v", err)
	}
	res, err := env.pieces.ListPieces(ctx, ListPiecesRequest{UserID: &stranger})
	if err != nil || res.Total != 0 {
		t.Errorf("stranger listing total=%v err=%v", res, err)
	}

	owner := piece.UserID
	if _, err := env.pieces.GetPiece(ctx, GetPieceRequest{ID: piece.ID, UserID: &owner}); err != nil {
		t.Errorf("owner GetPiece err = %v", err)
	}
}

func TestDeletePieceRemovesHistoryAndArtifacts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "Para excluir", doc("Hello world"))
	env.suggest(t, piece.ID, 7, 12, "world")

	export, err := env.exports.ExportPiece(ctx, ExportPieceRequest{PieceID: piece.ID, Format: models.ExportHTML})
	if err != nil {
		t.Fatalf("ExportPiece: %v", err)
	}

	if err := env.pieces.DeletePiece(ctx, DeletePieceRequest{ID: piece.ID}); err != nil {
		t.Fatalf("DeletePiece: %v", err)
	}

	if _, err := env.pieces.GetPiece(ctx, GetPieceRequest{ID: piece.ID}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetPiece after delete err = %v", err)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 0 {
		t.Errorf("versions survived: %d", n)
	}
	if _, err := env.artifacts.Download(ctx, export.StoragePath); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("artifact download err = %v, want ErrNotFound", err)
	}

	env.indexer.mu.Lock()
	defer env.indexer.mu.Unlock()
	if len(env.indexer.deleted) != 1 || env.indexer.deleted[0] != piece.ID {
		t.Errorf("deleted from index: %v", env.indexer.deleted)
	}
}

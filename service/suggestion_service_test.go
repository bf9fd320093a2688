package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lexdraft-backend/models"
	"lexdraft-backend/prosemirror"

	"github.com/google/uuid"
)

func plainText(t *testing.T, content models.JSONB) string {
	t.Helper()
	d, err := prosemirror.Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d.PlainText()
}

func TestRequestSuggestionIsPendingBeforeStreamCompletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "Contestação", doc("Hello world"))

	h, err := env.suggestions.RequestSuggestion(ctx, RequestSuggestionRequest{
		PieceID:       piece.ID.String(),
		ActionType:    models.ActionRewrite,
		SelectionFrom: intPtr(7),
		SelectionTo:   intPtr(12),
		OriginalText:  "world",
	})
	if err != nil {
		t.Fatalf("RequestSuggestion: %v", err)
	}
	if h.ID == nil {
		t.Fatal("expected a persisted suggestion id")
	}

	s, err := env.store.Suggestions.GetByID(ctx, *h.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if s.Status != models.SuggestionPending || s.SuggestedText != "" {
		t.Errorf("before streaming: status=%s text=%q", s.Status, s.SuggestedText)
	}
	if !strings.Contains(env.provider.lastPrompt(), "world") {
		t.Errorf("prompt does not carry the selection: %q", env.provider.lastPrompt())
	}

	text, streamErr := drain(h)
	if streamErr != nil {
		t.Fatalf("stream: %v", streamErr)
	}
	if err := h.Finish(ctx, nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	s, _ = env.store.Suggestions.GetByID(ctx, *h.ID)
	if s.Status != models.SuggestionPending {
		t.Errorf("status after stream = %s, want pending", s.Status)
	}
	if s.SuggestedText != text || text != "Texto formal." {
		t.Errorf("suggested text = %q, streamed %q", s.SuggestedText, text)
	}
}

func TestAcceptSuggestionAppliesTextAndSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := doc("Hello world")
	piece := env.createPiece(t, "Petição", before)

	s := env.suggest(t, piece.ID, 7, 12, "world")

	res, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "X"})
	if err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
	if res.Suggestion.Status != models.SuggestionAccepted {
		t.Errorf("status = %s", res.Suggestion.Status)
	}
	if res.Suggestion.SuggestedText != "X" {
		t.Errorf("suggested text = %q, want X", res.Suggestion.SuggestedText)
	}

	stored, err := env.store.Pieces.GetByID(ctx, piece.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := plainText(t, stored.ContentJSON); got != "Hello X" {
		t.Errorf("content = %q, want %q", got, "Hello X")
	}
	if stored.Revision != piece.Revision+1 {
		t.Errorf("revision = %d, want %d", stored.Revision, piece.Revision+1)
	}

	versions := env.versionsOf(t, piece.ID)
	if len(versions) != 1 {
		t.Fatalf("versions = %d, want 1", len(versions))
	}
	if versions[0].ChangeReason != models.ReasonAISuggestion || versions[0].ID != res.PieceVersionID {
		t.Errorf("unexpected version %+v", versions[0])
	}
	v, err := env.store.Versions.GetByID(ctx, res.PieceVersionID)
	if err != nil {
		t.Fatal(err)
	}
	if string(v.ContentJSON) != string(before) {
		t.Errorf("snapshot content = %s, want prior content %s", v.ContentJSON, before)
	}

	linked, _ := env.store.Suggestions.GetByID(ctx, s.ID)
	if linked.PieceVersionID == nil || *linked.PieceVersionID != res.PieceVersionID {
		t.Errorf("suggestion not linked to snapshot: %v", linked.PieceVersionID)
	}
}

func TestAcceptSuggestionUsesGeneratedTextByDefault(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", doc("Hello world"))
	s := env.suggest(t, piece.ID, 7, 12, "world")

	if _, err := env.suggestions.AcceptSuggestion(context.Background(), AcceptSuggestionRequest{ID: s.ID}); err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
	stored, _ := env.store.Pieces.GetByID(context.Background(), piece.ID)
	if got := plainText(t, stored.ContentJSON); got != "Hello Texto formal." {
		t.Errorf("content = %q", got)
	}
}

func TestAcceptSuggestionWithStaleSelectionRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "Recurso", doc("Hello world"))
	s := env.suggest(t, piece.ID, 7, 12, "world")

	changed := doc("Hello there")
	if _, err := env.pieces.UpdatePiece(ctx, UpdatePieceRequest{ID: piece.ID, ContentJSON: &changed}); err != nil {
		t.Fatalf("UpdatePiece: %v", err)
	}

	_, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "X"})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	after, _ := env.store.Suggestions.GetByID(ctx, s.ID)
	if after.Status != models.SuggestionPending {
		t.Errorf("status = %s, want pending after rollback", after.Status)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 0 {
		t.Errorf("versions = %d, want 0 after rollback", n)
	}
	stored, _ := env.store.Pieces.GetByID(ctx, piece.ID)
	if string(stored.ContentJSON) != string(changed) {
		t.Errorf("content changed: %s", stored.ContentJSON)
	}
}

func TestAcceptSuggestionOverWholeDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "", doc("um", "dois"))
	// [0, ContentSize()) starts and ends between blocks
	s := env.suggest(t, piece.ID, 0, 10, "umdois")

	if _, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "X"}); err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
	stored, _ := env.store.Pieces.GetByID(ctx, piece.ID)
	if got := plainText(t, stored.ContentJSON); got != "X" {
		t.Errorf("content = %q, want X", got)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 1 {
		t.Errorf("versions = %d, want 1", n)
	}
	after, _ := env.store.Suggestions.GetByID(ctx, s.ID)
	if after.Status != models.SuggestionAccepted {
		t.Errorf("status = %s, want accepted", after.Status)
	}
}

func TestAcceptSuggestionIgnoresWhitespaceDifferences(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", doc("Hello world"))
	s := env.suggest(t, piece.ID, 7, 12, " world\n")

	if _, err := env.suggestions.AcceptSuggestion(context.Background(), AcceptSuggestionRequest{ID: s.ID, FinalText: "X"}); err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
}

func TestAcceptSuggestionTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "", doc("Hello world"))
	s := env.suggest(t, piece.ID, 7, 12, "world")

	if _, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "X"}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "Y"})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("second accept err = %v, want ErrInvalidState", err)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 1 {
		t.Errorf("versions = %d, want 1", n)
	}
}

func TestConcurrentAcceptAppliesOnce(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", doc("Hello world"))
	s := env.suggest(t, piece.ID, 7, 12, "world")

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.suggestions.AcceptSuggestion(context.Background(), AcceptSuggestionRequest{ID: s.ID, FinalText: "X"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrInvalidState):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("accepted %d times, want 1", succeeded)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 1 {
		t.Errorf("versions = %d, want 1", n)
	}
}

func TestAcceptSuggestionRevisionGuard(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", doc("Hello world"))
	s := env.suggest(t, piece.ID, 7, 12, "world")

	stale := s.Revision + 5
	_, err := env.suggestions.AcceptSuggestion(context.Background(), AcceptSuggestionRequest{
		ID: s.ID, FinalText: "X", ExpectedRevision: &stale,
	})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestRejectSuggestionLeavesPieceUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := doc("Hello world")
	piece := env.createPiece(t, "", before)
	s := env.suggest(t, piece.ID, 7, 12, "world")

	rejected, err := env.suggestions.RejectSuggestion(ctx, RejectSuggestionRequest{ID: s.ID})
	if err != nil {
		t.Fatalf("RejectSuggestion: %v", err)
	}
	if rejected.Status != models.SuggestionRejected {
		t.Errorf("status = %s", rejected.Status)
	}

	stored, _ := env.store.Pieces.GetByID(ctx, piece.ID)
	if string(stored.ContentJSON) != string(before) || stored.Revision != piece.Revision {
		t.Errorf("piece changed: rev %d content %s", stored.Revision, stored.ContentJSON)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 0 {
		t.Errorf("versions = %d, want 0", n)
	}

	_, err = env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "X"})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("accept after reject err = %v, want ErrInvalidState", err)
	}
}

func TestStreamFailureMarksSuggestionFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.streamErr = errors.New("quota exceeded")
	piece := env.createPiece(t, "", doc("Hello world"))

	s := env.suggest(t, piece.ID, 7, 12, "world")
	if s.Status != models.SuggestionFailed {
		t.Fatalf("status = %s, want failed", s.Status)
	}
	if s.ErrorMessage == nil || *s.ErrorMessage != "quota exceeded" {
		t.Errorf("error message = %v", s.ErrorMessage)
	}
	if s.SuggestedText != "Texto formal." {
		t.Errorf("partial text = %q", s.SuggestedText)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 0 {
		t.Errorf("versions = %d, want 0", n)
	}

	_, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "X"})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("accept failed suggestion err = %v, want ErrInvalidState", err)
	}
}

func TestClientDisconnectIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", doc("Hello world"))

	ctx, cancel := context.WithCancel(context.Background())
	h, err := env.suggestions.RequestSuggestion(ctx, RequestSuggestionRequest{
		PieceID:      piece.ID.String(),
		ActionType:   models.ActionReduce,
		OriginalText: "Hello world",
	})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	_, streamErr := h.Next(ctx)
	if !errors.Is(streamErr, context.Canceled) {
		t.Fatalf("Next err = %v", streamErr)
	}
	if err := h.Finish(context.WithoutCancel(ctx), streamErr); err != nil {
		t.Fatal(err)
	}

	s, _ := env.store.Suggestions.GetByID(context.Background(), *h.ID)
	if s.Status != models.SuggestionFailed || s.ErrorMessage == nil || *s.ErrorMessage != "client disconnected" {
		t.Errorf("status=%s message=%v", s.Status, s.ErrorMessage)
	}
}

func TestProviderUnavailableCreatesNoSuggestion(t *testing.T) {
	env := newTestEnv(t)
	env.suggestions.provider = nil
	piece := env.createPiece(t, "", doc("Hello world"))

	_, err := env.suggestions.RequestSuggestion(context.Background(), RequestSuggestionRequest{
		PieceID:      piece.ID.String(),
		ActionType:   models.ActionRewrite,
		OriginalText: "Hello",
	})
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}

	if n := env.suggestionCount(t); n != 0 {
		t.Errorf("found %d suggestion rows, want none", n)
	}
}

func TestProviderStartErrorFailsSuggestion(t *testing.T) {
	env := newTestEnv(t)
	env.provider.startErr = errors.New("connection refused")
	piece := env.createPiece(t, "", doc("Hello world"))

	_, err := env.suggestions.RequestSuggestion(context.Background(), RequestSuggestionRequest{
		PieceID:      piece.ID.String(),
		ActionType:   models.ActionRewrite,
		OriginalText: "Hello",
	})
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if n := env.suggestionCount(t); n != 0 {
		t.Errorf("%d suggestions recorded", n)
	}
}

func TestRequestSuggestionValidation(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", doc("Hello world"))
	id := piece.ID.String()

	tests := []struct {
		name string
		req  RequestSuggestionRequest
		want error
	}{
		{"missing action", RequestSuggestionRequest{PieceID: id, OriginalText: "a"}, models.ErrValidation},
		{"unknown action", RequestSuggestionRequest{PieceID: id, ActionType: "poetry", OriginalText: "a"}, models.ErrValidation},
		{"blank text", RequestSuggestionRequest{PieceID: id, ActionType: models.ActionRewrite, OriginalText: "  "}, models.ErrValidation},
		{"half selection", RequestSuggestionRequest{PieceID: id, ActionType: models.ActionRewrite, OriginalText: "a", SelectionFrom: intPtr(1)}, models.ErrValidation},
		{"inverted selection", RequestSuggestionRequest{PieceID: id, ActionType: models.ActionRewrite, OriginalText: "a", SelectionFrom: intPtr(5), SelectionTo: intPtr(2)}, models.ErrValidation},
		{"negative selection", RequestSuggestionRequest{PieceID: id, ActionType: models.ActionRewrite, OriginalText: "a", SelectionFrom: intPtr(-1), SelectionTo: intPtr(2)}, models.ErrValidation},
		{"bad piece id", RequestSuggestionRequest{PieceID: "abc", ActionType: models.ActionRewrite, OriginalText: "a"}, models.ErrValidation},
		{"unknown piece", RequestSuggestionRequest{PieceID: uuid.NewString(), ActionType: models.ActionRewrite, OriginalText: "a"}, models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.suggestions.RequestSuggestion(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDemoSuggestionIsNotPersisted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h, err := env.suggestions.RequestSuggestion(ctx, RequestSuggestionRequest{
		PieceID:      models.DemoPieceID,
		ActionType:   models.ActionCohesion,
		OriginalText: "Texto de demonstração",
	})
	if err != nil {
		t.Fatalf("RequestSuggestion: %v", err)
	}
	if h.ID != nil {
		t.Errorf("demo suggestion got id %v", h.ID)
	}
	text, err := drain(h)
	if err != nil || text == "" {
		t.Fatalf("drain: %q %v", text, err)
	}
	if err := h.Finish(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if n := env.suggestionCount(t); n != 0 {
		t.Errorf("demo request persisted %d rows", n)
	}
}

func TestRegenerateSuggestionCreatesNewRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "", doc("Hello world"))
	prior := env.suggest(t, piece.ID, 7, 12, "world")

	h, err := env.suggestions.RegenerateSuggestion(ctx, RegenerateSuggestionRequest{ID: prior.ID})
	if err != nil {
		t.Fatalf("RegenerateSuggestion: %v", err)
	}
	if h.ID == nil || *h.ID == prior.ID {
		t.Fatalf("regenerate reused row: %v", h.ID)
	}
	_, streamErr := drain(h)
	if err := h.Finish(ctx, streamErr); err != nil {
		t.Fatal(err)
	}

	old, _ := env.store.Suggestions.GetByID(ctx, prior.ID)
	if old.Status != models.SuggestionRejected {
		t.Errorf("prior status = %s, want rejected", old.Status)
	}
	fresh, _ := env.store.Suggestions.GetByID(ctx, *h.ID)
	if fresh.Status != models.SuggestionPending || *fresh.SelectionFrom != 7 || *fresh.SelectionTo != 12 || fresh.OriginalText != "world" {
		t.Errorf("fresh suggestion %+v", fresh)
	}
}

func TestRegenerateWithoutProviderKeepsPrior(t *testing.T) {
	env := newTestEnv(t)
	piece := env.createPiece(t, "", doc("Hello world"))
	prior := env.suggest(t, piece.ID, 7, 12, "world")
	env.suggestions.provider = nil

	_, err := env.suggestions.RegenerateSuggestion(context.Background(), RegenerateSuggestionRequest{ID: prior.ID})
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Fatalf("err = %v", err)
	}
	old, _ := env.store.Suggestions.GetByID(context.Background(), prior.ID)
	if old.Status != models.SuggestionPending {
		t.Errorf("prior status = %s, want pending", old.Status)
	}
}

func TestUpdateSuggestionDispatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "", doc("Hello world"))

	t.Run("invalid status", func(t *testing.T) {
		s := env.suggest(t, piece.ID, 7, 12, "world")
		_, err := env.suggestions.UpdateSuggestion(ctx, UpdateSuggestionRequest{ID: s.ID, Status: "failed"})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("pending edits text", func(t *testing.T) {
		s := env.suggest(t, piece.ID, 7, 12, "world")
		res, err := env.suggestions.UpdateSuggestion(ctx, UpdateSuggestionRequest{
			ID: s.ID, Status: "pending", SuggestedText: strPtr("mundo"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.Suggestion.SuggestedText != "mundo" || res.Message != "Suggestion updated" {
			t.Errorf("result %+v", res)
		}
	})

	t.Run("pending requires text", func(t *testing.T) {
		s := env.suggest(t, piece.ID, 7, 12, "world")
		_, err := env.suggestions.UpdateSuggestion(ctx, UpdateSuggestionRequest{ID: s.ID, Status: "pending"})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		s := env.suggest(t, piece.ID, 7, 12, "world")
		res, err := env.suggestions.UpdateSuggestion(ctx, UpdateSuggestionRequest{ID: s.ID, Status: "rejected"})
		if err != nil {
			t.Fatal(err)
		}
		if res.PieceVersionID != nil || res.Message != "Suggestion rejected" {
			t.Errorf("result %+v", res)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		s := env.suggest(t, piece.ID, 7, 12, "world")
		res, err := env.suggestions.UpdateSuggestion(ctx, UpdateSuggestionRequest{
			ID: s.ID, Status: "accepted", SuggestedText: strPtr("mundo"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.PieceVersionID == nil || res.Message != "Suggestion accepted" {
			t.Errorf("result %+v", res)
		}
		detail, err := env.suggestions.GetSuggestion(ctx, GetSuggestionRequest{ID: s.ID})
		if err != nil {
			t.Fatal(err)
		}
		if detail.PieceVersion == nil || detail.PieceVersion.ID != *res.PieceVersionID || detail.Piece.ID != piece.ID {
			t.Errorf("detail %+v", detail)
		}
	})
}

func TestSweepStaleSuggestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "", doc("Hello world"))

	// the stream of this one never completes
	inFlight, err := env.suggestions.RequestSuggestion(ctx, RequestSuggestionRequest{
		PieceID:       piece.ID.String(),
		ActionType:    models.ActionFormalize,
		SelectionFrom: intPtr(7),
		SelectionTo:   intPtr(12),
		OriginalText:  "world",
	})
	if err != nil {
		t.Fatalf("RequestSuggestion: %v", err)
	}
	generated := env.suggest(t, piece.ID, 7, 12, "world")
	rejected := env.suggest(t, piece.ID, 7, 12, "world")
	if _, err := env.suggestions.RejectSuggestion(ctx, RejectSuggestionRequest{ID: rejected.ID}); err != nil {
		t.Fatal(err)
	}
	if generated.GeneratedAt == nil {
		t.Fatal("completed suggestion has no generatedAt")
	}

	if n, _ := env.suggestions.SweepStaleSuggestions(ctx, time.Hour); n != 0 {
		t.Errorf("fresh suggestions swept: %d", n)
	}
	// a negative age puts the cutoff in the future
	n, err := env.suggestions.SweepStaleSuggestions(ctx, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("swept %d, want 1", n)
	}

	s, _ := env.store.Suggestions.GetByID(ctx, *inFlight.ID)
	if s.Status != models.SuggestionFailed || s.ErrorMessage == nil || *s.ErrorMessage != "abandoned" {
		t.Errorf("in-flight status=%s message=%v", s.Status, s.ErrorMessage)
	}
	if err := inFlight.Finish(ctx, nil); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Finish after sweep = %v, want ErrInvalidState", err)
	}

	// a generated suggestion waiting on the user survives and can be accepted
	g, _ := env.store.Suggestions.GetByID(ctx, generated.ID)
	if g.Status != models.SuggestionPending {
		t.Fatalf("generated suggestion status = %s", g.Status)
	}
	if _, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: generated.ID}); err != nil {
		t.Fatalf("AcceptSuggestion after sweep: %v", err)
	}
	if n := len(env.versionsOf(t, piece.ID)); n != 1 {
		t.Errorf("versions = %d, want 1", n)
	}
}

func TestSuggestionOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	piece := env.createPiece(t, "", doc("Hello world"))
	s := env.suggest(t, piece.ID, 7, 12, "world")
	stranger := uuid.New()

	if _, err := env.suggestions.GetSuggestion(ctx, GetSuggestionRequest{ID: s.ID, UserID: &stranger}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetSuggestion err = %v", err)
	}
	if _, err := env.suggestions.AcceptSuggestion(ctx, AcceptSuggestionRequest{ID: s.ID, FinalText: "X", UserID: &stranger}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("AcceptSuggestion err = %v", err)
	}
	if _, err := env.suggestions.RequestSuggestion(ctx, RequestSuggestionRequest{
		PieceID: piece.ID.String(), ActionType: models.ActionRewrite, OriginalText: "x", UserID: &stranger,
	}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("RequestSuggestion err = %v", err)
	}

	owner := piece.UserID
	if _, err := env.suggestions.GetSuggestion(ctx, GetSuggestionRequest{ID: s.ID, UserID: &owner}); err != nil {
		t.Errorf("owner GetSuggestion err = %v", err)
	}
}

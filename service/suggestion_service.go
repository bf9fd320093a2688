package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lexdraft-backend/llm"
	"lexdraft-backend/models"
	"lexdraft-backend/prosemirror"
	"lexdraft-backend/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// abandonedReason is recorded on pending suggestions failed by the sweeper
const abandonedReason = "abandoned"

// SuggestionService runs the AI suggestion lifecycle
type SuggestionService struct {
	suggestions repository.SuggestionRepository
	pieces      repository.PieceRepository
	tx          repository.TransactionManager
	versions    *VersionService
	provider    llm.Provider
	indexer     PieceIndexer
	logger      *slog.Logger
}

// SuggestionServiceOption is a functional option for SuggestionService
type SuggestionServiceOption func(*SuggestionService)

// SuggestionWithSuggestionRepository sets the suggestion repository
func SuggestionWithSuggestionRepository(repo repository.SuggestionRepository) SuggestionServiceOption {
	return func(s *SuggestionService) {
		s.suggestions = repo
	}
}

// SuggestionWithPieceRepository sets the piece repository
func SuggestionWithPieceRepository(repo repository.PieceRepository) SuggestionServiceOption {
	return func(s *SuggestionService) {
		s.pieces = repo
	}
}

// SuggestionWithTransactionManager sets the transaction manager
func SuggestionWithTransactionManager(tx repository.TransactionManager) SuggestionServiceOption {
	return func(s *SuggestionService) {
		s.tx = tx
	}
}

// SuggestionWithVersionService sets the version service
func SuggestionWithVersionService(versions *VersionService) SuggestionServiceOption {
	return func(s *SuggestionService) {
		s.versions = versions
	}
}

// SuggestionWithProvider sets the text generation provider. A nil provider
// makes every request fail with ErrProviderUnavailable.
func SuggestionWithProvider(provider llm.Provider) SuggestionServiceOption {
	return func(s *SuggestionService) {
		s.provider = provider
	}
}

// SuggestionWithIndexer sets the search indexer
func SuggestionWithIndexer(indexer PieceIndexer) SuggestionServiceOption {
	return func(s *SuggestionService) {
		s.indexer = indexer
	}
}

// SuggestionWithLogger sets the logger
func SuggestionWithLogger(logger *slog.Logger) SuggestionServiceOption {
	return func(s *SuggestionService) {
		s.logger = logger
	}
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(opts ...SuggestionServiceOption) *SuggestionService {
	s := &SuggestionService{logger: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SuggestionService) ready() error {
	if s.suggestions == nil {
		return errors.New("suggestion repository not set")
	}
	if s.pieces == nil {
		return errors.New("piece repository not set")
	}
	if s.tx == nil {
		return errors.New("transaction manager not set")
	}
	if s.versions == nil {
		return errors.New("version service not set")
	}
	return nil
}

// RequestSuggestionRequest represents a request for an AI suggestion
type RequestSuggestionRequest struct {
	PieceID       string
	ActionType    models.ActionType
	SelectionFrom *int
	SelectionTo   *int
	OriginalText  string
	UserID        *uuid.UUID
}

func (r *RequestSuggestionRequest) validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.PieceID, validation.Required),
		validation.Field(&r.ActionType, validation.Required, validation.By(func(value interface{}) error {
			if a, _ := value.(models.ActionType); !a.Valid() {
				return fmt.Errorf("unsupported action %q", a)
			}
			return nil
		})),
		validation.Field(&r.OriginalText, validation.Required, notBlank),
		validation.Field(&r.SelectionFrom, validation.Min(0)),
		validation.Field(&r.SelectionTo, validation.Min(0)),
	)
	if err != nil {
		return err
	}
	if (r.SelectionFrom == nil) != (r.SelectionTo == nil) {
		return errors.New("selectionFrom and selectionTo must be given together")
	}
	if r.SelectionFrom != nil && *r.SelectionFrom > *r.SelectionTo {
		return errors.New("selectionFrom must not exceed selectionTo")
	}
	if r.PieceID != models.DemoPieceID {
		if _, err := uuid.Parse(r.PieceID); err != nil {
			return errors.New("pieceId must be a UUID or \"demo\"")
		}
	}
	return nil
}

// SuggestionHandle is an in-flight suggestion stream. ID is nil in demo mode.
type SuggestionHandle struct {
	ID       *uuid.UUID
	stream   llm.TextStream
	text     strings.Builder
	svc      *SuggestionService
	finished bool
}

// Next returns the next chunk of generated text, io.EOF at the end.
func (h *SuggestionHandle) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chunk, err := h.stream.Next()
	if err != nil {
		return "", err
	}
	h.text.WriteString(chunk)
	return chunk, nil
}

// Text returns the text generated so far
func (h *SuggestionHandle) Text() string {
	return h.text.String()
}

// Finish closes the stream and records the outcome. A nil streamErr stores
// the generated text on the still pending suggestion; anything else fails
// it. ctx should outlive the client request.
func (h *SuggestionHandle) Finish(ctx context.Context, streamErr error) error {
	if h.finished {
		return nil
	}
	h.finished = true
	_ = h.stream.Close()

	if h.ID == nil {
		return nil
	}
	return h.svc.finish(ctx, *h.ID, h.Text(), streamErr)
}

func (s *SuggestionService) finish(ctx context.Context, id uuid.UUID, text string, streamErr error) error {
	if streamErr == nil {
		if err := s.suggestions.SetSuggestedText(ctx, id, text); err != nil {
			s.logger.Warn("failed to store suggested text", "suggestion_id", id, "error", err)
			return err
		}
		s.logger.Info("suggestion generated", "suggestion_id", id, "length", len(text))
		return nil
	}

	message := streamErr.Error()
	if errors.Is(streamErr, context.Canceled) {
		message = "client disconnected"
	}
	_, err := s.suggestions.Transition(ctx, models.SuggestionTransition{
		ID:            id,
		To:            models.SuggestionFailed,
		SuggestedText: &text,
		ErrorMessage:  &message,
	})
	if err != nil {
		s.logger.Warn("failed to mark suggestion failed", "suggestion_id", id, "error", err)
		return err
	}
	s.logger.Warn("suggestion failed", "suggestion_id", id, "error", message)
	return nil
}

// RequestSuggestion records a pending suggestion and starts streaming the
// rewrite. With the demo piece id nothing is persisted.
func (s *SuggestionService) RequestSuggestion(ctx context.Context, req RequestSuggestionRequest) (*SuggestionHandle, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, validationError(err)
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", models.ErrProviderUnavailable)
	}

	prompt, err := llm.SuggestionPrompt(req.ActionType, req.OriginalText)
	if err != nil {
		return nil, err
	}

	handle := &SuggestionHandle{svc: s}
	if req.PieceID != models.DemoPieceID {
		pieceID := uuid.MustParse(req.PieceID)
		if _, err := loadPiece(ctx, s.pieces, pieceID, req.UserID); err != nil {
			return nil, err
		}
		suggestion := &models.AiSuggestion{
			PieceID:       pieceID,
			ActionType:    req.ActionType,
			SelectionFrom: req.SelectionFrom,
			SelectionTo:   req.SelectionTo,
			OriginalText:  req.OriginalText,
			Status:        models.SuggestionPending,
		}
		if err := s.suggestions.Create(ctx, suggestion); err != nil {
			return nil, err
		}
		handle.ID = &suggestion.ID
	}

	stream, err := s.provider.StreamText(ctx, prompt)
	if err != nil {
		if handle.ID != nil {
			_ = s.finish(context.WithoutCancel(ctx), *handle.ID, "", err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	handle.stream = stream

	s.logger.Info("suggestion requested",
		"suggestion_id", handle.ID,
		"piece_id", req.PieceID,
		"action", req.ActionType,
		"provider", s.provider.Name(),
	)
	return handle, nil
}

// suggestionForCaller loads a suggestion and checks the caller owns its piece
func (s *SuggestionService) suggestionForCaller(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*models.AiSuggestion, *models.Piece, error) {
	suggestion, err := s.suggestions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	piece, err := loadPiece(ctx, s.pieces, suggestion.PieceID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, fmt.Errorf("suggestion: %w", models.ErrNotFound)
		}
		return nil, nil, err
	}
	return suggestion, piece, nil
}

// AcceptSuggestionRequest represents a request to accept a suggestion
type AcceptSuggestionRequest struct {
	ID               uuid.UUID
	FinalText        string
	ExpectedRevision *int
	UserID           *uuid.UUID
}

// AcceptSuggestionResult represents the result of accepting a suggestion
type AcceptSuggestionResult struct {
	Suggestion     *models.AiSuggestion
	Piece          *models.Piece
	PieceVersionID uuid.UUID
}

// AcceptSuggestion claims the suggestion, snapshots the piece, applies the
// text to the selection and links the snapshot, all in one transaction.
func (s *SuggestionService) AcceptSuggestion(ctx context.Context, req AcceptSuggestionRequest) (*AcceptSuggestionResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var result AcceptSuggestionResult
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		if _, _, err := s.suggestionForCaller(ctx, req.ID, req.UserID); err != nil {
			return err
		}

		transition := models.SuggestionTransition{
			ID:               req.ID,
			To:               models.SuggestionAccepted,
			ExpectedRevision: req.ExpectedRevision,
		}
		if req.FinalText != "" {
			transition.SuggestedText = &req.FinalText
		}
		suggestion, err := s.suggestions.Transition(ctx, transition)
		if err != nil {
			return err
		}

		text := suggestion.SuggestedText
		if text == "" {
			return fmt.Errorf("%w: suggestion has no text to apply", models.ErrValidation)
		}

		piece, err := s.pieces.GetByID(ctx, suggestion.PieceID)
		if err != nil {
			return err
		}

		version, err := s.versions.SnapshotPiece(ctx, piece, models.ReasonAISuggestion)
		if err != nil {
			return err
		}

		if suggestion.SelectionFrom != nil && suggestion.SelectionTo != nil {
			content, err := applySuggestion(piece.ContentJSON, suggestion, text)
			if err != nil {
				return err
			}
			piece.ContentJSON = content
			if err := s.pieces.Update(ctx, piece, piece.Revision); err != nil {
				return err
			}
		}

		if err := s.suggestions.SetPieceVersion(ctx, suggestion.ID, version.ID); err != nil {
			return err
		}
		suggestion.PieceVersionID = &version.ID

		result = AcceptSuggestionResult{Suggestion: suggestion, Piece: piece, PieceVersionID: version.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.indexer != nil {
		s.indexer.IndexPiece(result.Piece)
	}
	s.logger.Info("suggestion accepted",
		"suggestion_id", req.ID,
		"piece_id", result.Piece.ID,
		"version_id", result.PieceVersionID,
	)
	return &result, nil
}

// applySuggestion replaces the suggestion's span of content with text. The
// span must still cover the original text.
func applySuggestion(content models.JSONB, suggestion *models.AiSuggestion, text string) (models.JSONB, error) {
	stale := func(reason string) error {
		return models.NewConflictError("suggestion", suggestion.ID.String(), "selection is stale: "+reason)
	}

	if content.IsNull() {
		return nil, stale("piece has no content")
	}
	doc, err := prosemirror.Parse(content)
	if err != nil {
		return nil, stale(err.Error())
	}

	from, to := *suggestion.SelectionFrom, *suggestion.SelectionTo
	current, err := doc.TextBetween(from, to)
	if err != nil {
		return nil, stale(err.Error())
	}
	if !sameText(current, suggestion.OriginalText) {
		return nil, stale("document changed under the selection")
	}

	if err := doc.ReplaceText(from, to, text); err != nil {
		return nil, stale(err.Error())
	}
	out, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return out, nil
}

// RejectSuggestionRequest represents a request to reject a suggestion
type RejectSuggestionRequest struct {
	ID               uuid.UUID
	SuggestedText    *string
	ExpectedRevision *int
	UserID           *uuid.UUID
}

// RejectSuggestion marks a pending suggestion rejected. The piece is untouched.
func (s *SuggestionService) RejectSuggestion(ctx context.Context, req RejectSuggestionRequest) (*models.AiSuggestion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, _, err := s.suggestionForCaller(ctx, req.ID, req.UserID); err != nil {
		return nil, err
	}

	suggestion, err := s.suggestions.Transition(ctx, models.SuggestionTransition{
		ID:               req.ID,
		To:               models.SuggestionRejected,
		SuggestedText:    req.SuggestedText,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("suggestion rejected", "suggestion_id", req.ID)
	return suggestion, nil
}

// UpdateSuggestionRequest represents a PATCH on a suggestion
type UpdateSuggestionRequest struct {
	ID            uuid.UUID
	Status        string
	SuggestedText *string
	Revision      *int
	UserID        *uuid.UUID
}

// UpdateSuggestionResult represents the result of a PATCH on a suggestion
type UpdateSuggestionResult struct {
	Suggestion     *models.AiSuggestion
	PieceVersionID *uuid.UUID
	Message        string
}

// UpdateSuggestion dispatches on the requested status
func (s *SuggestionService) UpdateSuggestion(ctx context.Context, req UpdateSuggestionRequest) (*UpdateSuggestionResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	switch models.SuggestionStatus(req.Status) {
	case models.SuggestionAccepted:
		accept := AcceptSuggestionRequest{ID: req.ID, ExpectedRevision: req.Revision, UserID: req.UserID}
		if req.SuggestedText != nil {
			accept.FinalText = *req.SuggestedText
		}
		res, err := s.AcceptSuggestion(ctx, accept)
		if err != nil {
			return nil, err
		}
		return &UpdateSuggestionResult{
			Suggestion:     res.Suggestion,
			PieceVersionID: &res.PieceVersionID,
			Message:        "Suggestion accepted",
		}, nil

	case models.SuggestionRejected:
		suggestion, err := s.RejectSuggestion(ctx, RejectSuggestionRequest{
			ID:               req.ID,
			SuggestedText:    req.SuggestedText,
			ExpectedRevision: req.Revision,
			UserID:           req.UserID,
		})
		if err != nil {
			return nil, err
		}
		return &UpdateSuggestionResult{Suggestion: suggestion, Message: "Suggestion rejected"}, nil

	case models.SuggestionPending:
		if req.SuggestedText == nil {
			return nil, fmt.Errorf("%w: suggestedText is required", models.ErrValidation)
		}
		if _, _, err := s.suggestionForCaller(ctx, req.ID, req.UserID); err != nil {
			return nil, err
		}
		if err := s.suggestions.SetSuggestedText(ctx, req.ID, *req.SuggestedText); err != nil {
			return nil, err
		}
		suggestion, err := s.suggestions.GetByID(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return &UpdateSuggestionResult{Suggestion: suggestion, Message: "Suggestion updated"}, nil
	}

	return nil, fmt.Errorf("%w: status must be accepted, rejected or pending", models.ErrValidation)
}

// RegenerateSuggestionRequest represents a request to regenerate a suggestion
type RegenerateSuggestionRequest struct {
	ID     uuid.UUID
	UserID *uuid.UUID
}

// RegenerateSuggestion rejects the prior suggestion if it is still pending
// and requests a fresh one for the same span. The prior row is never reused.
func (s *SuggestionService) RegenerateSuggestion(ctx context.Context, req RegenerateSuggestionRequest) (*SuggestionHandle, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	prior, _, err := s.suggestionForCaller(ctx, req.ID, req.UserID)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", models.ErrProviderUnavailable)
	}

	if prior.Status == models.SuggestionPending {
		_, err := s.suggestions.Transition(ctx, models.SuggestionTransition{ID: prior.ID, To: models.SuggestionRejected})
		if err != nil && !errors.Is(err, models.ErrInvalidState) {
			return nil, err
		}
	}

	return s.RequestSuggestion(ctx, RequestSuggestionRequest{
		PieceID:       prior.PieceID.String(),
		ActionType:    prior.ActionType,
		SelectionFrom: prior.SelectionFrom,
		SelectionTo:   prior.SelectionTo,
		OriginalText:  prior.OriginalText,
		UserID:        req.UserID,
	})
}

// SuggestionPieceRef is the piece summary embedded in suggestion details
type SuggestionPieceRef struct {
	ID    uuid.UUID `json:"id"`
	Title *string   `json:"title"`
}

// SuggestionVersionRef is the version summary embedded in suggestion details
type SuggestionVersionRef struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// SuggestionDetail is a suggestion with its piece and version references
type SuggestionDetail struct {
	*models.AiSuggestion
	Piece        SuggestionPieceRef    `json:"piece"`
	PieceVersion *SuggestionVersionRef `json:"pieceVersion"`
}

// GetSuggestionRequest represents a request to read a suggestion
type GetSuggestionRequest struct {
	ID     uuid.UUID
	UserID *uuid.UUID
}

// GetSuggestion returns a suggestion with piece and version references
func (s *SuggestionService) GetSuggestion(ctx context.Context, req GetSuggestionRequest) (*SuggestionDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	suggestion, piece, err := s.suggestionForCaller(ctx, req.ID, req.UserID)
	if err != nil {
		return nil, err
	}

	detail := &SuggestionDetail{
		AiSuggestion: suggestion,
		Piece:        SuggestionPieceRef{ID: piece.ID, Title: piece.Title},
	}
	if suggestion.PieceVersionID != nil {
		version, err := s.versions.versions.GetByID(ctx, *suggestion.PieceVersionID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		if version != nil {
			detail.PieceVersion = &SuggestionVersionRef{ID: version.ID, CreatedAt: version.CreatedAt}
		}
	}
	return detail, nil
}

// SweepStaleSuggestions fails pending suggestions older than olderThan whose
// stream never completed. Generated suggestions wait for the user.
func (s *SuggestionService) SweepStaleSuggestions(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s.suggestions == nil {
		return 0, errors.New("suggestion repository not set")
	}
	n, err := s.suggestions.FailPendingBefore(ctx, time.Now().Add(-olderThan), abandonedReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("stale suggestions failed", "count", n, "older_than", olderThan)
	}
	return n, nil
}

// RunSweeper sweeps stale suggestions every interval until ctx is done
func (s *SuggestionService) RunSweeper(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepStaleSuggestions(ctx, olderThan); err != nil && ctx.Err() == nil {
				s.logger.Error("suggestion sweep failed", "error", err)
			}
		}
	}
}

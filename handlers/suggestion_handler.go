package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"lexdraft-backend/llm"
	"lexdraft-backend/models"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

// finishTimeout bounds recording a stream's outcome after the client is gone
const finishTimeout = 10 * time.Second

// SuggestionHandler handles AI suggestion and wizard requests
type SuggestionHandler struct {
	suggestions *service.SuggestionService
	wizard      *service.WizardService
	logger      *slog.Logger
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(suggestions *service.SuggestionService, wizard *service.WizardService, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		suggestions: suggestions,
		wizard:      wizard,
		logger:      logger,
	}
}

// SuggestionRequest represents the request body for an AI suggestion
type SuggestionRequest struct {
	PieceID       string `json:"pieceId"`
	ActionType    string `json:"actionType"`
	SelectionFrom *int   `json:"selectionFrom"`
	SelectionTo   *int   `json:"selectionTo"`
	OriginalText  string `json:"originalText"`
}

// RequestSuggestion handles POST /api/ai/suggestion
func (h *SuggestionHandler) RequestSuggestion(c *gin.Context) {
	var req SuggestionRequest
	if !bindJSON(c, &req) {
		return
	}

	handle, err := h.suggestions.RequestSuggestion(c.Request.Context(), service.RequestSuggestionRequest{
		PieceID:       req.PieceID,
		ActionType:    models.ActionType(req.ActionType),
		SelectionFrom: req.SelectionFrom,
		SelectionTo:   req.SelectionTo,
		OriginalText:  req.OriginalText,
		UserID:        callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	h.streamSuggestion(c, handle)
}

// RegenerateSuggestion handles POST /api/suggestions/:id/regenerate
func (h *SuggestionHandler) RegenerateSuggestion(c *gin.Context) {
	id, ok := parseID(c, "suggestion")
	if !ok {
		return
	}
	handle, err := h.suggestions.RegenerateSuggestion(c.Request.Context(), service.RegenerateSuggestionRequest{
		ID:     id,
		UserID: callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	h.streamSuggestion(c, handle)
}

func startTextStream(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
}

// streamSuggestion writes chunks as they arrive. The status is already sent,
// so failures only end the stream and are recorded on the suggestion.
func (h *SuggestionHandler) streamSuggestion(c *gin.Context, handle *service.SuggestionHandle) {
	if handle.ID != nil {
		c.Header("X-Suggestion-Id", handle.ID.String())
	}
	startTextStream(c)

	ctx := c.Request.Context()
	var streamErr error
	for {
		chunk, err := handle.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			streamErr = err
			break
		}
		c.Writer.Flush()
	}
	if streamErr != nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := handle.Finish(finishCtx, streamErr); err != nil {
		h.logger.Error("failed to record suggestion outcome", "suggestion_id", handle.ID, "error", err)
	}
}

// UpdateSuggestionRequest represents the request body for a suggestion PATCH
type UpdateSuggestionRequest struct {
	Status        string  `json:"status"`
	SuggestedText *string `json:"suggestedText"`
	Revision      *int    `json:"revision"`
}

// UpdateSuggestion handles PATCH /api/suggestions/:id
func (h *SuggestionHandler) UpdateSuggestion(c *gin.Context) {
	id, ok := parseID(c, "suggestion")
	if !ok {
		return
	}
	var req UpdateSuggestionRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.suggestions.UpdateSuggestion(c.Request.Context(), service.UpdateSuggestionRequest{
		ID:            id,
		Status:        req.Status,
		SuggestedText: req.SuggestedText,
		Revision:      req.Revision,
		UserID:        callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	body := gin.H{
		"success":    true,
		"message":    result.Message,
		"suggestion": result.Suggestion,
	}
	if result.PieceVersionID != nil {
		body["pieceVersionId"] = result.PieceVersionID
	}
	c.JSON(http.StatusOK, body)
}

// GetSuggestion handles GET /api/suggestions/:id
func (h *SuggestionHandler) GetSuggestion(c *gin.Context) {
	id, ok := parseID(c, "suggestion")
	if !ok {
		return
	}
	detail, err := h.suggestions.GetSuggestion(c.Request.Context(), service.GetSuggestionRequest{
		ID:     id,
		UserID: callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// WizardRequest represents the request body for a wizard transform
type WizardRequest struct {
	Text         string `json:"text"`
	Action       string `json:"action"`
	CustomPrompt string `json:"customPrompt"`
}

// Wizard handles POST /api/ai/wizard
func (h *SuggestionHandler) Wizard(c *gin.Context) {
	var req WizardRequest
	if !bindJSON(c, &req) {
		return
	}

	stream, err := h.wizard.Transform(c.Request.Context(), service.TransformRequest{
		Text:         req.Text,
		Action:       llm.WizardAction(req.Action),
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	defer stream.Close()

	startTextStream(c)
	ctx := c.Request.Context()
	for {
		if ctx.Err() != nil {
			return
		}
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			h.logger.Warn("wizard stream failed", "action", req.Action, "error", err)
			return
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return
		}
		c.Writer.Flush()
	}
}

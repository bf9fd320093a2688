package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"lexdraft-backend/models"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

// PieceHandler handles HTTP requests for pieces, their versions and drafts
type PieceHandler struct {
	pieces   *service.PieceService
	versions *service.VersionService
	drafts   *service.DraftService
	logger   *slog.Logger
}

// NewPieceHandler creates a new piece handler
func NewPieceHandler(pieces *service.PieceService, versions *service.VersionService, drafts *service.DraftService, logger *slog.Logger) *PieceHandler {
	return &PieceHandler{
		pieces:   pieces,
		versions: versions,
		drafts:   drafts,
		logger:   logger,
	}
}

// templateRef accepts a template id sent as a JSON string or number
type templateRef string

func (t *templateRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = templateRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("templateId must be a string or number")
	}
	*t = templateRef(n.String())
	return nil
}

// CreatePieceRequest represents the request body for creating a piece
type CreatePieceRequest struct {
	TemplateID  templateRef  `json:"templateId"`
	Title       *string      `json:"title"`
	ContentJSON models.JSONB `json:"contentJson"`
	InputsJSON  models.JSONB `json:"inputsJson"`
	ThesesJSON  models.JSONB `json:"thesesJson"`
	JurisJSON   models.JSONB `json:"jurisJson"`
}

// CreatePiece handles POST /api/pieces
func (h *PieceHandler) CreatePiece(c *gin.Context) {
	var req CreatePieceRequest
	if !bindJSON(c, &req) {
		return
	}

	piece, err := h.pieces.CreatePiece(c.Request.Context(), service.CreatePieceRequest{
		TemplateID:  string(req.TemplateID),
		Title:       req.Title,
		ContentJSON: req.ContentJSON,
		InputsJSON:  req.InputsJSON,
		ThesesJSON:  req.ThesesJSON,
		JurisJSON:   req.JurisJSON,
		UserID:      callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, piece)
}

// ListPieces handles GET /api/pieces
func (h *PieceHandler) ListPieces(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	result, err := h.pieces.ListPieces(c.Request.Context(), service.ListPiecesRequest{
		UserID: callerID(c),
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPiece handles GET /api/pieces/:id
func (h *PieceHandler) GetPiece(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}

	piece, err := h.pieces.GetPiece(c.Request.Context(), service.GetPieceRequest{ID: id, UserID: callerID(c)})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, piece)
}

// UpdatePieceRequest represents the request body for updating a piece.
// A null contentJson leaves the content unchanged.
type UpdatePieceRequest struct {
	Title         *string       `json:"title"`
	ContentJSON   *models.JSONB `json:"contentJson"`
	CreateVersion bool          `json:"createVersion"`
	Revision      *int          `json:"revision"`
}

// UpdatePiece handles PATCH /api/pieces/:id
func (h *PieceHandler) UpdatePiece(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}
	var req UpdatePieceRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.pieces.UpdatePiece(c.Request.Context(), service.UpdatePieceRequest{
		ID:            id,
		Title:         req.Title,
		ContentJSON:   req.ContentJSON,
		CreateVersion: req.CreateVersion,
		Revision:      req.Revision,
		UserID:        callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	body := gin.H{
		"success": true,
		"piece":   result.Piece,
	}
	if result.PieceVersionID != nil {
		body["pieceVersionId"] = result.PieceVersionID
	}
	c.JSON(http.StatusOK, body)
}

// DeletePiece handles DELETE /api/pieces/:id
func (h *PieceHandler) DeletePiece(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}
	if err := h.pieces.DeletePiece(c.Request.Context(), service.DeletePieceRequest{ID: id, UserID: callerID(c)}); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListVersions handles GET /api/pieces/:id/versions
func (h *PieceHandler) ListVersions(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	versions, err := h.versions.ListVersions(c.Request.Context(), service.ListVersionsRequest{
		PieceID: id,
		Limit:   limit,
		UserID:  callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// CreateVersion handles POST /api/pieces/:id/versions
func (h *PieceHandler) CreateVersion(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}
	var req struct {
		Reason models.ChangeReason `json:"reason"`
	}
	if !bindJSON(c, &req) {
		return
	}

	version, err := h.versions.Snapshot(c.Request.Context(), service.SnapshotRequest{
		PieceID: id,
		Reason:  req.Reason,
		UserID:  callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

// GetVersion handles GET /api/versions/:id
func (h *PieceHandler) GetVersion(c *gin.Context) {
	id, ok := parseID(c, "version")
	if !ok {
		return
	}
	version, err := h.versions.GetVersion(c.Request.Context(), service.GetVersionRequest{ID: id, UserID: callerID(c)})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, version)
}

// RestoreVersion handles POST /api/versions/:id/restore
func (h *PieceHandler) RestoreVersion(c *gin.Context) {
	id, ok := parseID(c, "version")
	if !ok {
		return
	}
	// the body is optional
	var req struct {
		Revision *int `json:"revision"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	result, err := h.versions.RestoreVersion(c.Request.Context(), service.RestoreVersionRequest{
		ID:       id,
		Revision: req.Revision,
		UserID:   callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"piece":          result.Piece,
		"pieceVersionId": result.PieceVersionID,
	})
}

// GenerateDraft handles POST /api/pieces/:id/generate
func (h *PieceHandler) GenerateDraft(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}

	// Create job (synchronous, fast)
	result, err := h.drafts.GenerateDraft(c.Request.Context(), service.GenerateDraftRequest{
		PieceID: id,
		UserID:  callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	// runs under the server context, not the request's
	h.drafts.Start(result.JobID)

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":   result.JobID,
		"status":  result.Status,
		"message": "Generation job created. Poll /api/jobs/:id for updates.",
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *PieceHandler) GetJobStatus(c *gin.Context) {
	id, ok := parseID(c, "job")
	if !ok {
		return
	}

	job, err := h.drafts.GetJobStatus(c.Request.Context(), service.GetJobStatusRequest{
		JobID:  id,
		UserID: callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"lexdraft-backend/models"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

// ExportHandler handles HTTP requests for document exports
type ExportHandler struct {
	exports *service.ExportService
	logger  *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exports *service.ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{exports: exports, logger: logger}
}

// ExportPiece handles POST /api/pieces/:id/export
func (h *ExportHandler) ExportPiece(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}
	var req struct {
		Format models.ExportFormat `json:"format"`
	}
	if !bindJSON(c, &req) {
		return
	}

	export, err := h.exports.ExportPiece(c.Request.Context(), service.ExportPieceRequest{
		PieceID: id,
		Format:  req.Format,
		UserID:  callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, export)
}

// ListExports handles GET /api/pieces/:id/exports
func (h *ExportHandler) ListExports(c *gin.Context) {
	id, ok := parseID(c, "piece")
	if !ok {
		return
	}
	exports, err := h.exports.ListExports(c.Request.Context(), service.ListExportsRequest{
		PieceID: id,
		UserID:  callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, exports)
}

// DownloadExport handles GET /api/exports/:id/download
func (h *ExportHandler) DownloadExport(c *gin.Context) {
	id, ok := parseID(c, "export")
	if !ok {
		return
	}

	export, reader, err := h.exports.DownloadExport(c.Request.Context(), service.DownloadExportRequest{
		ID:     id,
		UserID: callerID(c),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, export.Size, export.MimeType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=\"%s\"", export.Filename),
	})
}

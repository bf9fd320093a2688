// Package handlers exposes the HTTP API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lexdraft-backend/auth"
	"lexdraft-backend/search"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries everything the router serves
type RouterConfig struct {
	Logger *slog.Logger

	// Ready reports whether the store is reachable
	Ready func(ctx context.Context) error

	// Verifier is optional; without it every request is anonymous
	Verifier auth.Verifier

	// RateLimiter is optional; AIRateLimit is requests per minute
	RateLimiter RateLimiter
	AIRateLimit int

	Templates   *service.TemplateService
	Pieces      *service.PieceService
	Versions    *service.VersionService
	Drafts      *service.DraftService
	Suggestions *service.SuggestionService
	Wizard      *service.WizardService
	Exports     *service.ExportService
	Search      *search.Service
}

// NewRouter builds the gin engine with every route
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(Recovery(logger), RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ready(ctx); err != nil {
				logger.Warn("readiness check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	templateHandler := NewTemplateHandler(cfg.Templates, logger)
	pieceHandler := NewPieceHandler(cfg.Pieces, cfg.Versions, cfg.Drafts, logger)
	suggestionHandler := NewSuggestionHandler(cfg.Suggestions, cfg.Wizard, logger)
	exportHandler := NewExportHandler(cfg.Exports, logger)
	searchHandler := NewSearchHandler(cfg.Search)

	aiLimit := RateLimit(cfg.RateLimiter, cfg.AIRateLimit, time.Minute, logger)

	api := r.Group("/api")
	api.Use(Authenticate(cfg.Verifier))
	{
		// Template endpoints
		api.GET("/templates", templateHandler.ListTemplates)
		api.GET("/templates/categories", templateHandler.ListCategories)

		// Piece endpoints
		api.POST("/pieces", pieceHandler.CreatePiece)
		api.GET("/pieces", pieceHandler.ListPieces)
		api.GET("/pieces/:id", pieceHandler.GetPiece)
		api.PATCH("/pieces/:id", pieceHandler.UpdatePiece)
		api.DELETE("/pieces/:id", pieceHandler.DeletePiece)
		api.POST("/pieces/:id/generate", aiLimit, pieceHandler.GenerateDraft)

		// Version endpoints
		api.GET("/pieces/:id/versions", pieceHandler.ListVersions)
		api.POST("/pieces/:id/versions", pieceHandler.CreateVersion)
		api.GET("/versions/:id", pieceHandler.GetVersion)
		api.POST("/versions/:id/restore", pieceHandler.RestoreVersion)

		// Job endpoints
		api.GET("/jobs/:id", pieceHandler.GetJobStatus)

		// Export endpoints
		api.POST("/pieces/:id/export", exportHandler.ExportPiece)
		api.GET("/pieces/:id/exports", exportHandler.ListExports)
		api.GET("/exports/:id/download", exportHandler.DownloadExport)

		api.GET("/search", searchHandler.Search)

		// AI endpoints
		api.POST("/ai/suggestion", aiLimit, suggestionHandler.RequestSuggestion)
		api.POST("/ai/wizard", aiLimit, suggestionHandler.Wizard)
		api.POST("/suggestions/:id/regenerate", aiLimit, suggestionHandler.RegenerateSuggestion)
		api.PATCH("/suggestions/:id", suggestionHandler.UpdateSuggestion)
		api.GET("/suggestions/:id", suggestionHandler.GetSuggestion)
	}

	return r
}

package handlers

import (
	"log/slog"
	"net/http"

	"lexdraft-backend/search"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

// TemplateHandler serves the template catalog
type TemplateHandler struct {
	templates *service.TemplateService
	logger    *slog.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templates *service.TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger}
}

// ListTemplates handles GET /api/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templates.ListTemplates(c.Request.Context(), service.ListTemplatesRequest{
		Category: c.Query("category"),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// ListCategories handles GET /api/templates/categories
func (h *TemplateHandler) ListCategories(c *gin.Context) {
	categories, err := h.templates.ListCategories()
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// SearchHandler serves piece search
type SearchHandler struct {
	search *search.Service
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(s *search.Service) *SearchHandler {
	return &SearchHandler{search: s}
}

// Search handles GET /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	q := search.Query{
		Text:  c.Query("q"),
		Limit: limit,
	}
	if id := callerID(c); id != nil {
		q.UserID = id.String()
	}
	c.JSON(http.StatusOK, h.search.Search(c.Request.Context(), q))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lexdraft-backend/catalog"
	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	"github.com/google/uuid"
)

// TemplateCache stores rendered template listings
type TemplateCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// TemplateService serves the seeded template catalog
type TemplateService struct {
	templates repository.TemplateRepository
	catalog   *catalog.Catalog
	cache     TemplateCache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// TemplateServiceOption is a functional option for TemplateService
type TemplateServiceOption func(*TemplateService)

// TemplateWithRepository sets the template repository
func TemplateWithRepository(repo repository.TemplateRepository) TemplateServiceOption {
	return func(s *TemplateService) {
		s.templates = repo
	}
}

// TemplateWithCatalog sets the catalog used for category listings
func TemplateWithCatalog(c *catalog.Catalog) TemplateServiceOption {
	return func(s *TemplateService) {
		s.catalog = c
	}
}

// TemplateWithCache caches listings for ttl
func TemplateWithCache(cache TemplateCache, ttl time.Duration) TemplateServiceOption {
	return func(s *TemplateService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// TemplateWithLogger sets the logger
func TemplateWithLogger(logger *slog.Logger) TemplateServiceOption {
	return func(s *TemplateService) {
		s.logger = logger
	}
}

// NewTemplateService creates a new template service
func NewTemplateService(opts ...TemplateServiceOption) *TemplateService {
	s := &TemplateService{logger: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTemplatesRequest represents a request to list templates
type ListTemplatesRequest struct {
	Category string
}

// ListTemplates returns templates ordered by title. An empty category or
// "Todos" lists everything.
func (s *TemplateService) ListTemplates(ctx context.Context, req ListTemplatesRequest) ([]*models.Template, error) {
	if s.templates == nil {
		return nil, errors.New("template repository not set")
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.CategoryAll
	}
	key := "templates:" + category

	if s.cache != nil {
		var cached []*models.Template
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("template cache read failed", "key", key, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	templates, err := s.templates.List(ctx, category)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, templates, s.cacheTTL); err != nil {
			s.logger.Warn("template cache write failed", "key", key, "error", err)
		}
	}
	return templates, nil
}

// ListCategories returns the catalog categories, "Todos" first
func (s *TemplateService) ListCategories() ([]string, error) {
	if s.catalog == nil {
		return nil, errors.New("template catalog not set")
	}
	return s.catalog.Categories(), nil
}

// ResolveTemplate finds a template by UUID or by catalog key
func (s *TemplateService) ResolveTemplate(ctx context.Context, ref string) (*models.Template, error) {
	if s.templates == nil {
		return nil, errors.New("template repository not set")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: templateId is required", models.ErrValidation)
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.templates.GetByID(ctx, id)
	}
	return s.templates.GetByCatalogKey(ctx, ref)
}

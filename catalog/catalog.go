// Package catalog holds the static list of document templates shipped with the
// backend. The list is embedded as YAML and seeded into the store on startup.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"

	"lexdraft-backend/models"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesFile []byte

// Entry is one template definition
type Entry struct {
	Key         string   `yaml:"key"`
	Title       string   `yaml:"title"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Popular     bool     `yaml:"popular"`
	Tags        []string `yaml:"tags"`
}

type file struct {
	Categories []string `yaml:"categories"`
	Templates  []Entry  `yaml:"templates"`
}

// Catalog is the parsed template list
type Catalog struct {
	categories []string
	entries    []Entry
	byKey      map[string]*Entry
}

// TemplateUpserter is the part of the template repository seeding needs
type TemplateUpserter interface {
	Upsert(ctx context.Context, template *models.Template) error
}

// Load parses the embedded catalog
func Load() (*Catalog, error) {
	return Parse(templatesFile)
}

// Parse parses a catalog document and checks that keys are unique and every
// template belongs to a declared category.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	known := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		known[c] = true
	}

	c := &Catalog{
		categories: f.Categories,
		entries:    f.Templates,
		byKey:      make(map[string]*Entry, len(f.Templates)),
	}
	for i := range c.entries {
		e := &c.entries[i]
		if e.Key == "" || e.Title == "" {
			return nil, fmt.Errorf("catalog entry %d: key and title are required", i)
		}
		if !known[e.Category] {
			return nil, fmt.Errorf("catalog entry %s: unknown category %q", e.Key, e.Category)
		}
		if _, dup := c.byKey[e.Key]; dup {
			return nil, fmt.Errorf("catalog entry %s: duplicate key", e.Key)
		}
		c.byKey[e.Key] = e
	}
	return c, nil
}

// Categories returns the declared categories, led by the catch-all one
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.categories)+1)
	out = append(out, models.CategoryAll)
	return append(out, c.categories...)
}

// Entries returns every template ordered by title
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// Lookup finds a template by its catalog key
func (c *Catalog) Lookup(key string) (Entry, bool) {
	e, ok := c.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Template converts an entry to its stored form
func (e Entry) Template() *models.Template {
	tags := models.StringList(e.Tags)
	if tags == nil {
		tags = models.StringList{}
	}
	return &models.Template{
		CatalogKey:  e.Key,
		Title:       e.Title,
		Category:    e.Category,
		Description: e.Description,
		Tags:        tags,
		IsPopular:   e.Popular,
	}
}

// Seed writes every catalog entry to the store. Existing rows are matched by
// catalog key and updated in place, so seeding is idempotent.
func (c *Catalog) Seed(ctx context.Context, repo TemplateUpserter, logger *slog.Logger) (int, error) {
	for _, e := range c.entries {
		if err := repo.Upsert(ctx, e.Template()); err != nil {
			return 0, fmt.Errorf("seed template %s: %w", e.Key, err)
		}
	}
	if logger != nil {
		logger.Info("template catalog seeded", "count", len(c.entries))
	}
	return len(c.entries), nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// CategoryAll is the pseudo-category that disables category filtering
const CategoryAll = "Todos"

// Template is a catalog entry describing a kind of legal document
type Template struct {
	ID          uuid.UUID  `json:"id"`
	CatalogKey  string     `json:"catalogKey"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Tags        StringList `json:"tags"`
	IsPopular   bool       `json:"isPopular"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TemplateRef is the template summary embedded in piece responses
type TemplateRef struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
}

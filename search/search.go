// Package search indexes pieces in Meilisearch and answers full-text queries,
// falling back to the store's title filter when the index is unavailable.
package search

import (
	"lexdraft-backend/models"
	"lexdraft-backend/prosemirror"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Status        string `json:"status"`
	TemplateTitle string `json:"templateTitle"`
	Category      string `json:"category"`
}

// Query describes a search request.
type Query struct {
	Text   string
	UserID string // empty = all users
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// PieceRecord is the data we index for a piece.
type PieceRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	UserID        string `json:"userId"`
	TemplateTitle string `json:"templateTitle"`
	Category      string `json:"category"`
	Text          string `json:"text"`
}

// maxIndexedText bounds the body text sent to the index
const maxIndexedText = 20000

// RecordFromPiece builds the index record of a piece. Content that is not a
// valid document is indexed by title only.
func RecordFromPiece(p *models.Piece) PieceRecord {
	r := PieceRecord{
		ID:     p.ID.String(),
		Title:  p.DisplayTitle(),
		Status: string(p.Status),
		UserID: p.UserID.String(),
	}
	if p.Template != nil {
		r.TemplateTitle = p.Template.Title
		r.Category = p.Template.Category
	}
	if doc, err := prosemirror.Parse(p.ContentJSON); err == nil {
		text := []rune(doc.PlainText())
		if len(text) > maxIndexedText {
			text = text[:maxIndexedText]
		}
		r.Text = string(text)
	}
	return r
}

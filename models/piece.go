package models

import (
	"time"

	"github.com/google/uuid"
)

// PieceStatus represents the lifecycle status of a piece
type PieceStatus string

const (
	PieceStatusDraft      PieceStatus = "draft"
	PieceStatusGenerating PieceStatus = "generating"
	PieceStatusCompleted  PieceStatus = "completed"
)

// Valid reports whether s is a known piece status
func (s PieceStatus) Valid() bool {
	switch s {
	case PieceStatusDraft, PieceStatusGenerating, PieceStatusCompleted:
		return true
	}
	return false
}

// Piece is a legal document being drafted by a user
type Piece struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"userId"`
	TemplateID  uuid.UUID    `json:"templateId"`
	Title       *string      `json:"title"`
	ContentJSON JSONB        `json:"contentJson"`
	InputsJSON  JSONB        `json:"inputsJson"`
	ThesesJSON  JSONB        `json:"thesesJson"`
	JurisJSON   JSONB        `json:"jurisJson"`
	Status      PieceStatus  `json:"status"`
	Revision    int          `json:"revision"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Template    *TemplateRef `json:"template,omitempty"`

	// Versions is only populated on single-piece reads
	Versions []*PieceVersion `json:"versions,omitempty"`
}

// DisplayTitle returns the piece title, falling back to its template title
func (p *Piece) DisplayTitle() string {
	if p.Title != nil && *p.Title != "" {
		return *p.Title
	}
	if p.Template != nil {
		return p.Template.Title
	}
	return "Sem título"
}

// PieceFilter selects pieces for listing
type PieceFilter struct {
	UserID *uuid.UUID
	Status *PieceStatus
	Search string
	Limit  int
	Offset int
}

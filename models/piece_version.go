package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeReason records why a piece version was captured
type ChangeReason string

const (
	ReasonManual       ChangeReason = "manual"
	ReasonAISuggestion ChangeReason = "ai_suggestion"
	ReasonExport       ChangeReason = "export"
	ReasonValidation   ChangeReason = "validation"
)

// Valid reports whether r is a known change reason
func (r ChangeReason) Valid() bool {
	switch r {
	case ReasonManual, ReasonAISuggestion, ReasonExport, ReasonValidation:
		return true
	}
	return false
}

// PieceVersion is an immutable snapshot of a piece's content
type PieceVersion struct {
	ID           uuid.UUID    `json:"id"`
	PieceID      uuid.UUID    `json:"pieceId"`
	ContentJSON  JSONB        `json:"contentJson,omitempty"`
	ChangeReason ChangeReason `json:"changeReason"`
	CreatedAt    time.Time    `json:"createdAt"`
}

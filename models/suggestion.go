package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the kind of rewrite requested for a text selection
type ActionType string

const (
	ActionRewrite        ActionType = "rewrite"
	ActionFormalize      ActionType = "formalize"
	ActionReduce         ActionType = "reduce"
	ActionCohesion       ActionType = "cohesion"
	ActionFundamentation ActionType = "fundamentation"
)

// ActionTypes lists every supported suggestion action
var ActionTypes = []ActionType{
	ActionRewrite,
	ActionFormalize,
	ActionReduce,
	ActionCohesion,
	ActionFundamentation,
}

// Valid reports whether a is a supported suggestion action
func (a ActionType) Valid() bool {
	for _, t := range ActionTypes {
		if a == t {
			return true
		}
	}
	return false
}

// SuggestionStatus is the lifecycle status of an AI suggestion
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
	SuggestionFailed   SuggestionStatus = "failed"
)

// Terminal reports whether no further transition is allowed
func (s SuggestionStatus) Terminal() bool {
	return s == SuggestionAccepted || s == SuggestionRejected || s == SuggestionFailed
}

// DemoPieceID is the piece id clients use to request suggestions without persistence
const DemoPieceID = "demo"

// AiSuggestion records one AI rewrite proposal for a span of a piece
type AiSuggestion struct {
	ID             uuid.UUID        `json:"id"`
	PieceID        uuid.UUID        `json:"pieceId"`
	ActionType     ActionType       `json:"actionType"`
	SelectionFrom  *int             `json:"selectionFrom"`
	SelectionTo    *int             `json:"selectionTo"`
	OriginalText   string           `json:"originalText"`
	SuggestedText  string           `json:"suggestedText"`
	Status         SuggestionStatus `json:"status"`
	PieceVersionID *uuid.UUID       `json:"pieceVersionId"`
	ErrorMessage   *string          `json:"errorMessage,omitempty"`
	Revision       int              `json:"revision"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	// GeneratedAt is set once the stream completed; only ungenerated rows go stale
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
}

// SuggestionTransition is a guarded status change of a pending suggestion
type SuggestionTransition struct {
	ID               uuid.UUID
	To               SuggestionStatus
	SuggestedText    *string
	ErrorMessage     *string
	ExpectedRevision *int
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenerationJobStatus represents the status of a generation job
type GenerationJobStatus string

const (
	JobStatusPending    GenerationJobStatus = "pending"
	JobStatusInProgress GenerationJobStatus = "in_progress"
	JobStatusCompleted  GenerationJobStatus = "completed"
	JobStatusFailed     GenerationJobStatus = "failed"
)

// GenerationStep represents a step in the generation process
type GenerationStep struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pending", "in_progress", "completed", "failed"
}

// GenerationSteps represents a list of generation steps
type GenerationSteps []GenerationStep

// Value implements driver.Valuer for JSONB
func (g GenerationSteps) Value() (driver.Value, error) {
	if g == nil {
		g = GenerationSteps{}
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB
func (g *GenerationSteps) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	}
	if len(raw) == 0 {
		*g = make(GenerationSteps, 0)
		return nil
	}
	return json.Unmarshal(raw, g)
}

// GenerationJob tracks background drafting of a piece
type GenerationJob struct {
	ID           uuid.UUID           `json:"id"`
	PieceID      uuid.UUID           `json:"pieceId"`
	Status       GenerationJobStatus `json:"status"`
	CurrentStep  *string             `json:"currentStep,omitempty"`
	Steps        GenerationSteps     `json:"steps"`
	ErrorMessage *string             `json:"errorMessage,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
}

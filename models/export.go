package models

import (
	"time"

	"github.com/google/uuid"
)

// ExportFormat is the rendered format of an exported piece
type ExportFormat string

const (
	ExportHTML ExportFormat = "html"
	ExportPDF  ExportFormat = "pdf"
)

// Export is a rendered artifact of a piece kept in object storage
type Export struct {
	ID             uuid.UUID    `json:"id"`
	PieceID        uuid.UUID    `json:"pieceId"`
	PieceVersionID *uuid.UUID   `json:"pieceVersionId"`
	Format         ExportFormat `json:"format"`
	Filename       string       `json:"filename"`
	MimeType       string       `json:"mimeType"`
	Size           int64        `json:"size"`
	StoragePath    string       `json:"storagePath"`
	CreatedAt      time.Time    `json:"createdAt"`
}

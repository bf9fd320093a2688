// Package service holds the business logic of the drafting backend. Services
// are configured with functional options and take Request structs.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// PieceIndexer receives piece changes for the search index
type PieceIndexer interface {
	IndexPiece(p *models.Piece)
	DeletePiece(id uuid.UUID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// validationError wraps an ozzo validation failure as ErrValidation
func validationError(err error) error {
	return fmt.Errorf("%w: %v", models.ErrValidation, err)
}

// notBlank rejects strings made only of whitespace, which Required lets through
var notBlank = validation.By(func(value interface{}) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// loadPiece reads a piece and hides pieces owned by someone other than userID.
// A nil userID is the anonymous caller, which sees every piece.
func loadPiece(ctx context.Context, pieces repository.PieceRepository, id uuid.UUID, userID *uuid.UUID) (*models.Piece, error) {
	piece, err := pieces.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != nil && piece.UserID != *userID {
		return nil, fmt.Errorf("piece: %w", models.ErrNotFound)
	}
	return piece, nil
}

// sameText compares texts ignoring whitespace, which editors serialize
// differently across block boundaries
func sameText(a, b string) bool {
	return strings.Join(strings.Fields(a), "") == strings.Join(strings.Fields(b), "")
}

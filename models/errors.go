package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by repositories, services and handlers.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid request")
	ErrInvalidState        = errors.New("invalid state")
	ErrConflict            = errors.New("conflict")
	ErrProviderUnavailable = errors.New("text generation provider unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
)

// ConflictError describes a write that lost an optimistic concurrency race.
type ConflictError struct {
	Message      string
	ResourceType string
	ResourceID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.ResourceType, e.Message)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a conflict error for the given resource
func NewConflictError(resourceType, resourceID, message string) *ConflictError {
	return &ConflictError{
		Message:      message,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// DemoUserEmail identifies the user created when pieces are written anonymously
const DemoUserEmail = "demo@lexdraft.local"

// User represents a user entity
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

package util

import "github.com/google/uuid"

// NewID returns a random identifier for newly created entities.
func NewID() string {
	return uuid.NewString()
}

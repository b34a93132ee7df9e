// Package uuid provides profile ID generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates random (v4) profile IDs.
type Generator struct{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewProfileID returns a fresh v4 UUID.
func (Generator) NewProfileID() (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid4: %w", err)
	}
	return id, nil
}

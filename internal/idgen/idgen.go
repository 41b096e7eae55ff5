// Package idgen produces statement identifiers for statements saved without
// one.
package idgen

import (
	"github.com/google/uuid"
)

// Generator produces statement identifiers.
//
// Implementations must return the canonical lower-case hyphenated UUID form
// and must be safe for concurrent use.
type Generator interface {
	Generate() string
}

// UUIDGenerator generates random (version 4) UUIDs.
//
// Statement ids are assigned by clients as often as by the store, so the
// identifier carries no ordering; store order comes from the stored timestamp.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate returns a new random UUID such as
// "f47ac10b-58cc-4372-a567-0e02b2c3d479".
//
// Panics if the system random source fails.
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewRandom()).String()
}

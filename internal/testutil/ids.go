package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates UUID-shaped statement ids from a counter.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario produces the same ids on every run.
//
//	gen := NewSequentialIDGenerator()
//	gen.Generate() // "00000000-0000-4000-8000-000000000001"
//	gen.Generate() // "00000000-0000-4000-8000-000000000002"
//
// Thread-safety: SequentialIDGenerator is safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu   sync.Mutex
	next uint64
}

// NewSequentialIDGenerator creates a generator whose first id ends in 1.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{next: 1}
}

// Generate returns the next id. The version and variant nibbles are those
// of a random UUID, so the ids pass uuid.Parse.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("00000000-0000-4000-8000-%012x", g.next)
	g.next++
	return id
}

// Reset restarts the sequence at 1.
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next = 1
}

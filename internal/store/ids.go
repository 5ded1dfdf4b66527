package store

import "github.com/google/uuid"

// RunIDGenerator produces identifiers for closure runs.
type RunIDGenerator interface {
	NewRunID() string
}

// UUIDv7Generator generates time-ordered UUIDs so run IDs sort by
// creation time.
type UUIDv7Generator struct{}

// NewRunID returns a new UUIDv7 string.
func (UUIDv7Generator) NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns a predetermined sequence of IDs. Used for
// testing.
type FixedGenerator struct {
	ids  []string
	next int
}

// NewFixedGenerator creates a generator that returns the given IDs in
// order, then panics when exhausted.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// NewRunID returns the next fixed ID.
func (g *FixedGenerator) NewRunID() string {
	if g.next >= len(g.ids) {
		panic("store: FixedGenerator exhausted")
	}
	id := g.ids[g.next]
	g.next++
	return id
}

// Package idgen abstracts unique identifier generation so tests can pin ids.
package idgen

import "github.com/google/uuid"

// Generator produces unique identifiers for drafts, variants, snapshots and
// history records.
type Generator interface {
	NewID() string
}

// UUIDGenerator issues random (v4) UUIDs.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}

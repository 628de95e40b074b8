package models

import "time"

// Snapshot is an immutable copy of a published variant's content at one
// version it has held. Exactly one snapshot exists per (EntityID, Version);
// rollback reads them to restore content and writes a fresh one for the new
// physical version.
type Snapshot struct {
	ID               string
	EntityID         string
	TranslationSetID string
	Language         string
	Content          Content
	Version          int64
	CapturedAt       time.Time
}

// SnapshotOf captures the variant's current state. Pure field copy, no
// business logic; the caller assigns the ID.
func SnapshotOf(v *Variant, now time.Time) *Snapshot {
	return &Snapshot{
		EntityID:         v.ID,
		TranslationSetID: v.TranslationSetID,
		Language:         v.Language,
		Content:          v.Content.Clone(),
		Version:          v.Version,
		CapturedAt:       now,
	}
}

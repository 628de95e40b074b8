package models

import "time"

// DraftStatus is the draft workflow state. Transitions are one-directional:
// pending -> under_review -> approved | rejected. There is no way back to
// under_review.
type DraftStatus string

const (
	StatusPending     DraftStatus = "pending"
	StatusUnderReview DraftStatus = "under_review"
	StatusApproved    DraftStatus = "approved"
	StatusRejected    DraftStatus = "rejected"
)

// Terminal reports whether the status ends the draft's editing life.
// Approved drafts are not terminal: they stay alive until publish consumes
// them.
func (s DraftStatus) Terminal() bool {
	return s == StatusRejected
}

// Draft is the mutable, editor-owned working copy of one language variant.
// A nil PublishedID means publish will create a brand-new published variant
// at version 1; otherwise publish overwrites the referenced variant and bumps
// its version. Publish deletes the draft.
type Draft struct {
	ID               string
	PublishedID      *string
	TranslationSetID string
	Language         string
	Kind             Kind
	Scope            Scope
	Content          Content
	Status           DraftStatus
	SubmitterID      string
	MergerID         *string
	MergedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Resource returns the uniform descriptor policy checks are evaluated on.
func (d *Draft) Resource() ResourceDescriptor {
	return ResourceDescriptor{
		Kind:             d.Kind,
		TranslationSetID: d.TranslationSetID,
		Scope:            d.Scope,
	}
}

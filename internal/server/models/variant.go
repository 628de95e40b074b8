package models

import "time"

// Scope carries the optional agency/group/talent identifiers a subject is
// nested under. It feeds the resource descriptor used for policy checks.
type Scope struct {
	AgencyID *string
	GroupID  *string
	TalentID *string
}

// Variant is the published, public read model of one language of a subject.
// It is mutated only by publish and rollback, each advancing Version by
// exactly 1. Version starts at 1 on first publish.
type Variant struct {
	ID               string
	TranslationSetID string
	Language         string
	Kind             Kind
	Scope            Scope
	Content          Content
	Version          int64
	PublishedAt      time.Time
	UpdatedAt        time.Time
}

// Resource returns the uniform descriptor policy checks are evaluated on.
func (v *Variant) Resource() ResourceDescriptor {
	return ResourceDescriptor{
		Kind:             v.Kind,
		TranslationSetID: v.TranslationSetID,
		Scope:            v.Scope,
	}
}

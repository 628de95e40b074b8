package models

import "time"

// Content is the language-specific payload of a variant. One struct serves
// every subject kind; fields that make no sense for a kind simply stay nil.
//
// NameNormalized is a derived search key and is recomputed on merge, never
// edited directly.
type Content struct {
	Name           string
	NameNormalized string
	Summary        *string
	CoverImage     *string
	ReleaseDate    *time.Time
	FoundingDate   *time.Time
}

// Clone returns a deep copy of c. Pointer fields are reallocated so the copy
// can be mutated without aliasing the original (snapshots rely on this).
func (c Content) Clone() Content {
	out := c
	out.Summary = cloneStringPtr(c.Summary)
	out.CoverImage = cloneStringPtr(c.CoverImage)
	out.ReleaseDate = cloneTimePtr(c.ReleaseDate)
	out.FoundingDate = cloneTimePtr(c.FoundingDate)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

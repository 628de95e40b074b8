package models

import "time"

// Edit is a tagged field change: the zero value means "leave the field
// alone", SetTo(v) means "replace the field with v". For optional fields T
// is a pointer type, so SetTo[*string](nil) expresses an explicit clear,
// distinct from Unchanged, which a bare nil could not express.
type Edit[T any] struct {
	set   bool
	value T
}

// SetTo returns an edit that replaces the field with v.
func SetTo[T any](v T) Edit[T] {
	return Edit[T]{set: true, value: v}
}

// Unchanged returns the no-op edit. Equivalent to the zero value.
func Unchanged[T any]() Edit[T] {
	return Edit[T]{}
}

// IsSet reports whether the edit carries a replacement value.
func (e Edit[T]) IsSet() bool { return e.set }

// Apply returns the edited value: v replaced when set, current otherwise.
func (e Edit[T]) Apply(current T) T {
	if e.set {
		return e.value
	}
	return current
}

// ContentEdits groups one tagged edit per content field. Fields left as the
// zero value are untouched by ApplyTo.
type ContentEdits struct {
	Name         Edit[string]
	Summary      Edit[*string]
	CoverImage   Edit[*string]
	ReleaseDate  Edit[*time.Time]
	FoundingDate Edit[*time.Time]
}

// ApplyTo mutates c in place according to the tagged edits.
func (e ContentEdits) ApplyTo(c *Content) {
	c.Name = e.Name.Apply(c.Name)
	c.Summary = e.Summary.Apply(c.Summary)
	c.CoverImage = e.CoverImage.Apply(c.CoverImage)
	c.ReleaseDate = e.ReleaseDate.Apply(c.ReleaseDate)
	c.FoundingDate = e.FoundingDate.Apply(c.FoundingDate)
}

// Empty reports whether no field is edited.
func (e ContentEdits) Empty() bool {
	return !e.Name.IsSet() && !e.Summary.IsSet() && !e.CoverImage.IsSet() &&
		!e.ReleaseDate.IsSet() && !e.FoundingDate.IsSet()
}

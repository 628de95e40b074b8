// Package common defines the sentinel errors shared across the catalog core.
// Callers should use errors.Is to match these values; repositories and
// services wrap them with context but never replace them.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound         = errors.New("not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// Workflow errors.
	ErrInvalidStatus = errors.New("invalid draft status")
	ErrDraftExists   = errors.New("draft already exists for language")

	// ErrExistsApprovedButNotTranslated blocks approving or publishing a
	// draft while another draft in the same translation set is approved but
	// not yet published against a different published identity.
	ErrExistsApprovedButNotTranslated = errors.New("approved but not yet translated draft exists in set")

	// Authorization.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// Rollback errors.
	ErrInvalidRollbackTarget = errors.New("rollback target version is not below current version")

	// ErrVersionMismatch means the variants of a translation set disagree on
	// their current version. Rollback refuses to touch such a set; the
	// mismatch is also the operational signal that a prior rollback committed
	// only part of the set.
	ErrVersionMismatch = errors.New("translation set version mismatch")

	// Validation / internal flow control.
	ErrValidation = errors.New("validation error")
	ErrInternal   = errors.New("internal error")
)

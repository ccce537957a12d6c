// Package apperr defines the sentinel errors shared across the bridge.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrGeometryMissing marks a recognized line without word boxes or a
	// stroke without samples; the item is skipped for the current pass.
	ErrGeometryMissing = errors.New("geometry missing")

	// ErrConflictMismatch marks an overlap count that deviates from a
	// block's recorded merged-line count by more than one.
	ErrConflictMismatch = errors.New("conflict: overlap mismatch")

	// ErrPersistence marks a failed write to the note database. Strokes
	// behind the failed action stay unassigned and retry next pass.
	ErrPersistence = errors.New("persistence failure")

	// ErrOrderingViolation marks an attempt to create a block before its
	// parent container exists.
	ErrOrderingViolation = errors.New("ordering violation: parent missing")
)

// Package apperrors defines the sentinel errors shared by the store, the
// orchestrator and the HTTP layer. Callers classify failures with errors.Is.
package apperrors

import "errors"

var (
	// ErrAlreadyExists is returned when a study (durable or pending) already
	// occupies the target (owner, name) key.
	ErrAlreadyExists = errors.New("study already exists")

	// ErrNotFound is returned for an unknown study or an unresolved remote
	// computation result.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller identity does not match the
	// study owner.
	ErrForbidden = errors.New("forbidden")

	// ErrComputationInProgress is returned when an operation requires every
	// computation gate of the study to be free and at least one is RUNNING.
	ErrComputationInProgress = errors.New("computation in progress")

	// ErrDeletionWhileCreating is returned when a delete targets a study whose
	// creation is still pending.
	ErrDeletionWhileCreating = errors.New("study creation in progress")

	// ErrImport marks a failure of the case import / network conversion
	// services during study creation.
	ErrImport = errors.New("network import failed")

	// ErrCompute marks a failure of a remote computation service.
	ErrCompute = errors.New("computation failed")

	// ErrStoreUnavailable marks a persistence-layer failure. Operations fail
	// fast on it; they are never retried silently.
	ErrStoreUnavailable = errors.New("study store unavailable")
)

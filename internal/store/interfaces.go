package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StudyStore handles the persistence of Study records.
//
// Status transitions are expressed as conditional single-statement updates so
// that two concurrent callers can never both observe a free gate and both
// acquire it. Methods that condition on current state report whether a row was
// actually updated; a false result with a nil error means the condition did
// not hold (gate busy, study deleted, or status already changed).
type StudyStore interface {
	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error

	// Create inserts a new durable study. Returns apperrors.ErrAlreadyExists
	// if the (owner, name) key is taken.
	Create(ctx context.Context, study *Study) error

	// Get returns the study for the given key, or apperrors.ErrNotFound.
	Get(ctx context.Context, key StudyKey) (*Study, error)

	// Exists reports whether a durable study occupies the given key.
	Exists(ctx context.Context, key StudyKey) (bool, error)

	// Delete removes the study unconditionally. Returns apperrors.ErrNotFound
	// if no row matched.
	Delete(ctx context.Context, key StudyKey) error

	// Rename relocates the record identity to (key.OwnerID, newName).
	// Returns apperrors.ErrAlreadyExists if the destination key is taken and
	// apperrors.ErrNotFound if the source does not exist.
	Rename(ctx context.Context, key StudyKey, newName string) error

	// ListVisibleTo returns the studies owned by userID plus the public
	// studies of other users, ordered by creation time.
	ListVisibleTo(ctx context.Context, userID string) ([]Study, error)

	// SetPrivate updates the visibility flag. Idempotent.
	SetPrivate(ctx context.Context, key StudyKey, private bool) error

	// SetLoadFlowParameters replaces the load-flow parameter blob.
	SetLoadFlowParameters(ctx context.Context, key StudyKey, params json.RawMessage) error

	// TryStartComputation atomically transitions the gate of the given kind
	// to RUNNING, provided the gates of all kinds are free. Returns false if
	// any gate is busy or the study does not exist.
	TryStartComputation(ctx context.Context, key StudyKey, kind ComputationKind) (bool, error)

	// FinishLoadFlow writes the terminal load-flow status and result payload,
	// releasing the gate. Only applies while the load-flow gate is RUNNING;
	// returns false otherwise (e.g. the study was deleted mid-flight).
	FinishLoadFlow(ctx context.Context, key StudyKey, status LoadFlowStatus, result json.RawMessage) (bool, error)

	// InvalidateLoadFlow resets the load-flow status to NOT_DONE and clears
	// the stored result, provided no computation is RUNNING. Returns false if
	// a gate is busy or the study does not exist.
	InvalidateLoadFlow(ctx context.Context, key StudyKey, clearSecurityAnalysis bool) (bool, error)

	// FinishSecurityAnalysis stores the remote result identifier and marks the
	// security-analysis dispatch DONE, releasing the gate. Only applies while
	// the gate is RUNNING.
	FinishSecurityAnalysis(ctx context.Context, key StudyKey, resultID uuid.UUID) (bool, error)

	// AbortSecurityAnalysis releases a RUNNING security-analysis gate back to
	// NOT_DONE without touching any previously stored result identifier.
	AbortSecurityAnalysis(ctx context.Context, key StudyKey) (bool, error)

	// ReclaimStale resets every computation gate that has been RUNNING longer
	// than ttl back to NOT_DONE, clearing partial load-flow state. Returns the
	// number of reclaimed studies.
	ReclaimStale(ctx context.Context, ttl time.Duration) (int64, error)

	// CountRunningComputations returns the number of studies with at least one
	// RUNNING gate. Used by the observability gauge.
	CountRunningComputations(ctx context.Context) (int64, error)
}

// Package pending tracks study creations that were accepted but are not yet
// durable. The registry is process-local shared state: it is created once at
// startup and every access goes through a single mutex, so concurrent
// registrations for the same key serialize and exactly one wins.
package pending

import (
	"context"
	"sort"
	"sync"
	"time"

	"gridstudy/internal/store"
)

// Creation is an in-flight, not-yet-durable study creation attempt.
type Creation struct {
	OwnerID     string
	Name        string
	SubmittedAt time.Time
}

// ExistenceChecker reports whether a durable study already occupies a key.
// Satisfied by store.StudyStore.
type ExistenceChecker interface {
	Exists(ctx context.Context, key store.StudyKey) (bool, error)
}

// Tracker is the in-memory registry of pending creations.
type Tracker struct {
	durable ExistenceChecker

	mu      sync.Mutex
	entries map[store.StudyKey]Creation
}

// New creates an empty tracker backed by the given durable-existence check.
func New(durable ExistenceChecker) *Tracker {
	return &Tracker{
		durable: durable,
		entries: make(map[store.StudyKey]Creation),
	}
}

// Register claims the key for a creation attempt. It returns false, without
// registering anything, if a pending entry or a durable study already occupies
// the key. The durable check runs under the tracker lock, so two concurrent
// calls for the same key cannot both pass it.
func (t *Tracker) Register(ctx context.Context, key store.StudyKey) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; ok {
		return false, nil
	}

	exists, err := t.durable.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	t.entries[key] = Creation{
		OwnerID:     key.OwnerID,
		Name:        key.Name,
		SubmittedAt: time.Now().UTC(),
	}
	return true, nil
}

// Complete removes the entry unconditionally. Called on both the success and
// the failure path of a creation attempt; removing an absent key is a no-op.
func (t *Tracker) Complete(key store.StudyKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// IsPending reports whether a creation is in flight for the key.
func (t *Tracker) IsPending(key store.StudyKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// List returns the pending creations of the given owner, oldest first.
func (t *Tracker) List(ownerID string) []Creation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var creations []Creation
	for key, c := range t.entries {
		if key.OwnerID == ownerID {
			creations = append(creations, c)
		}
	}
	sort.Slice(creations, func(i, j int) bool {
		return creations[i].SubmittedAt.Before(creations[j].SubmittedAt)
	})
	return creations
}

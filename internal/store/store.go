// Package store defines the persistence port for secret records and the
// errors its adapters share. Concrete backends (memory, sqlite, redis) live
// in subpackages; everything above this layer depends only on Repository, so
// backends are interchangeable without touching core logic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/veil-sh/veil/internal/domain"
)

// ErrConflict reports that a compare-and-swap counter update observed a
// different counter pre-image than expected. Callers re-fetch and re-evaluate.
var ErrConflict = errors.New("concurrent counter update")

// ErrDuplicateID reports an insert against an existing id. With random
// 128-bit ids this is practically unreachable, but adapters must still
// detect it rather than overwrite.
var ErrDuplicateID = errors.New("duplicate secret id")

// Repository is the storage port for secret records. Implementations must
// guarantee per-record serializability for counter mutations: UpdateCounters
// is conditional on the expected pre-image and fails with ErrConflict when
// another writer got there first, so no update is ever lost. Operations on
// different ids must not block each other.
type Repository interface {
	// Create persists a new record. Fails with ErrDuplicateID on an id
	// collision; any other error is a storage failure.
	Create(ctx context.Context, sec *domain.Secret) error

	// Get returns the record for id, or domain.ErrNotFound when absent.
	// It does NOT filter by expiry; the policy layer applies that check
	// against its explicit clock.
	Get(ctx context.Context, id uuid.UUID) (*domain.Secret, error)

	// UpdateCounters atomically replaces the views/failed_attempts pair,
	// conditional on the record still holding expected. Returns ErrConflict
	// on a pre-image mismatch and domain.ErrNotFound when the record is gone.
	UpdateCounters(ctx context.Context, id uuid.UUID, expected, next domain.Counters) error

	// Extend replaces the expiry deadline and view cap. newMaxViews == 0
	// keeps the record unlimited.
	Extend(ctx context.Context, id uuid.UUID, newExpiresAt time.Time, newMaxViews int) error

	// Delete removes the record. Idempotent: deleting an absent id is not an
	// error.
	Delete(ctx context.Context, id uuid.UUID) error

	// CleanupExpired bulk-deletes records whose expiry precedes now and
	// returns the count removed. Used by the sweep, never by request-path
	// logic.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

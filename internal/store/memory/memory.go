// Package memory provides a mutex-guarded in-memory implementation of the
// store.Repository port. It backs tests and single-process development runs;
// nothing is durable.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veil-sh/veil/internal/domain"
	"github.com/veil-sh/veil/internal/store"
)

var _ store.Repository = (*Repository)(nil)

// Repository stores records in a map. The single mutex serializes all
// mutations, which trivially satisfies the per-record CAS contract.
type Repository struct {
	mu      sync.RWMutex
	secrets map[uuid.UUID]domain.Secret
}

// New returns an empty Repository.
func New() *Repository {
	return &Repository{secrets: make(map[uuid.UUID]domain.Secret)}
}

func (r *Repository) Create(_ context.Context, sec *domain.Secret) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.secrets[sec.ID]; exists {
		return store.ErrDuplicateID
	}
	r.secrets[sec.ID] = *sec
	return nil
}

func (r *Repository) Get(_ context.Context, id uuid.UUID) (*domain.Secret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sec, ok := r.secrets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := sec
	return &cp, nil
}

func (r *Repository) UpdateCounters(_ context.Context, id uuid.UUID, expected, next domain.Counters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec, ok := r.secrets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sec.CurrentCounters() != expected {
		return store.ErrConflict
	}
	sec.Views = next.Views
	sec.FailedAttempts = next.FailedAttempts
	r.secrets[id] = sec
	return nil
}

func (r *Repository) Extend(_ context.Context, id uuid.UUID, newExpiresAt time.Time, newMaxViews int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec, ok := r.secrets[id]
	if !ok {
		return domain.ErrNotFound
	}
	sec.ExpiresAt = newExpiresAt
	sec.MaxViews = newMaxViews
	r.secrets[id] = sec
	return nil
}

func (r *Repository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.secrets, id)
	return nil
}

func (r *Repository) CleanupExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, sec := range r.secrets {
		if sec.ExpiresAt.Before(now) {
			delete(r.secrets, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records. Test helper.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.secrets)
}

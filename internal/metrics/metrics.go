// Package metrics provides a lightweight in-memory counter registry for
// operational insight. Counters are monotonic; a snapshot is served as JSON
// by Handler. The registry is deliberately backend-agnostic so it works the
// same over the memory, sqlite, and redis stores.
package metrics

import "sync"

// Names for counters used by the application.
const (
	CounterSecretsCreated   = "secrets_created_total"
	CounterSecretsRetrieved = "secrets_retrieved_total"
	CounterSecretsExtended  = "secrets_extended_total"
	CounterSecretsDeleted   = "secrets_deleted_total"
	CounterFailedAttempts   = "failed_attempts_total"
	CounterSecretsExpired   = "secrets_expired_total"
)

// Registry aggregates counter increments. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]int64)}
}

// Inc increments the named counter by one.
func (r *Registry) Inc(name string) {
	r.Add(name, 1)
}

// Add increments the named counter by n. Non-positive n is ignored to keep
// counters monotonic.
func (r *Registry) Add(name string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.mu.Lock()
	r.counters[name] += n
	r.mu.Unlock()
}

// Snapshot returns a copy of the current counter values.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

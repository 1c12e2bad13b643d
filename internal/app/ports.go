// Package app contains the application orchestration layer for Veil. It
// follows a hexagonal (ports & adapters) design: the service here wires the
// access policy engine to the storage port without performing any transport
// concerns itself. Adapter packages (SQLite/Redis/memory storage, HTTP layer,
// janitor jobs) provide concrete implementations of the ports.
package app

import "time"

// Clock abstracts time to enable deterministic testing of expiry and
// extension logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

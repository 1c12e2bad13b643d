package metrics

import (
	"encoding/json"
	"net/http"
)

// SnapshotProvider abstracts Registry for testing.
type SnapshotProvider interface {
	Snapshot() map[string]int64
}

// Handler returns an http.HandlerFunc that writes a JSON counters snapshot.
// If token is non-empty, requests must include Authorization: Bearer <token>.
func Handler(provider SnapshotProvider, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			hdr := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(hdr) <= len(prefix) || hdr[:len(prefix)] != prefix || hdr[len(prefix):] != token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		resp := map[string]any{
			"counters": provider.Snapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

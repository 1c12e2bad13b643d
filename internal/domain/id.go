// Package domain id.go contains functions to generate and parse secret IDs.
package domain

import "github.com/google/uuid"

// NewID generates a new cryptographically random 128-bit secret identifier
// (UUID v4). The identifier doubles as the share-link path segment.
func NewID() uuid.UUID {
	return uuid.New()
}

// ParseID validates s as a canonical UUID and returns it. Returns
// ErrInvalidID on any parse failure; callers on the retrieval path should
// surface that as ErrNotFound so malformed ids are indistinguishable from
// absent ones.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

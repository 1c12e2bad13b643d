// Package domain holds the SecretRecord entity and the pure rules that do not
// depend on storage or transport. The server never holds plaintext: the
// ciphertext is an opaque client-encrypted blob and the passphrase is kept
// only as a credential hash.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Secret is the sole persisted entity. MaxViews == 0 means unlimited views;
// such records are bounded by the failed-attempt cap instead.
type Secret struct {
	ID             uuid.UUID
	Ciphertext     string // opaque base64 payload, produced client-side
	CredentialHash string // bcrypt hash of the share passphrase
	CreatedAt      time.Time
	ExpiresAt      time.Time
	MaxViews       int
	Views          int
	Extendable     bool
	FailedAttempts int
}

// Counters is the pair of fields mutated on every retrieval attempt. It is
// passed to the store both as the expected pre-image and the new value so
// the update can be compare-and-swap.
type Counters struct {
	Views          int
	FailedAttempts int
}

// NewSecret constructs a fresh record. Callers supply already-clamped
// settings and an explicit creation instant.
func NewSecret(ciphertext, credentialHash string, maxViews int, expiresIn time.Duration, extendable bool, now time.Time) *Secret {
	return &Secret{
		ID:             NewID(),
		Ciphertext:     ciphertext,
		CredentialHash: credentialHash,
		CreatedAt:      now,
		ExpiresAt:      now.Add(expiresIn),
		MaxViews:       maxViews,
		Extendable:     extendable,
	}
}

// CurrentCounters returns the current counter pair.
func (s *Secret) CurrentCounters() Counters {
	return Counters{Views: s.Views, FailedAttempts: s.FailedAttempts}
}

// Expired reports whether the record is logically nonexistent at now.
// Records are inaccessible at the expiry instant itself, not just after it.
func (s *Secret) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// HasViewLimit reports whether the record carries a view cap.
func (s *Secret) HasViewLimit() bool {
	return s.MaxViews > 0
}

// ViewsRemaining returns the views left before depletion. ok is false for
// unlimited records.
func (s *Secret) ViewsRemaining() (n int, ok bool) {
	if !s.HasViewLimit() {
		return 0, false
	}
	n = s.MaxViews - s.Views
	if n < 0 {
		n = 0
	}
	return n, true
}

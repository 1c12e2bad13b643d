// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers. ErrNotFound
// deliberately covers absent, expired, and policy-deleted records so callers
// cannot tell the three apart.
var (
	ErrNotFound       = errors.New("secret not found")
	ErrUnauthorized   = errors.New("invalid passphrase")
	ErrNotExtendable  = errors.New("secret not extendable")
	ErrLimitExceeded  = errors.New("extension exceeds limits")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidID      = errors.New("invalid secret id")
)

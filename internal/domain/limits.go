// Package domain limits.go contains clamping helpers applied to
// caller-supplied creation settings before a record is persisted.
package domain

import "time"

// ClampExpiry converts a requested expires_in_hours value into a duration
// bounded by [1h, maxDays*24h]. A non-positive request falls back to
// defaultHours before clamping.
func ClampExpiry(requestedHours, maxDays, defaultHours int) time.Duration {
	h := requestedHours
	if h <= 0 {
		h = defaultHours
	}
	if h < 1 {
		h = 1
	}
	if ceil := maxDays * 24; h > ceil {
		h = ceil
	}
	return time.Duration(h) * time.Hour
}

// ClampMaxViews bounds a requested view cap to [1, ceiling]. A non-positive
// request means unlimited and is returned as 0 unchanged.
func ClampMaxViews(requested, ceiling int) int {
	if requested <= 0 {
		return 0
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

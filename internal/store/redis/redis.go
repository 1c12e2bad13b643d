// Package redis provides a Redis-backed implementation of the
// store.Repository port. Records are gob-encoded under a "secret:" key
// prefix with the key TTL pinned to the record's expiry, so Redis evicts
// expired records on its own; CleanupExpired only mops up stragglers.
// Counter mutations use WATCH transactions to satisfy the CAS contract.
package redis

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/veil-sh/veil/internal/domain"
	"github.com/veil-sh/veil/internal/store"
)

var _ store.Repository = (*Repository)(nil)

const keyPrefix = "secret:"

// Repository implements store.Repository on a Redis client.
type Repository struct {
	client *redis.Client
}

// New dials Redis and verifies the connection.
func New(opts *redis.Options) (*Repository, error) {
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Repository{client: client}, nil
}

// Close releases the underlying client.
func (r *Repository) Close() error { return r.client.Close() }

func (r *Repository) Create(ctx context.Context, sec *domain.Secret) error {
	data, err := encode(sec)
	if err != nil {
		return err
	}
	ttl := time.Until(sec.ExpiresAt)
	if ttl <= 0 {
		// Never store an already-dead record; callers clamp expiry, so this
		// only guards against clock skew at the boundary.
		return domain.ErrInvalidRequest
	}
	ok, err := r.client.SetNX(ctx, key(sec.ID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrDuplicateID
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return decode(data)
}

// UpdateCounters re-reads the record inside a WATCH transaction and writes
// the new counter pair only when the pre-image still matches. A key touched
// by a concurrent writer aborts the transaction; both the abort and a
// pre-image mismatch surface as ErrConflict so the caller re-evaluates.
func (r *Repository) UpdateCounters(ctx context.Context, id uuid.UUID, expected, next domain.Counters) error {
	k := key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return err
		}
		sec, err := decode(data)
		if err != nil {
			return err
		}
		if sec.CurrentCounters() != expected {
			return store.ErrConflict
		}
		sec.Views = next.Views
		sec.FailedAttempts = next.FailedAttempts
		newData, err := encode(sec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, newData, redis.KeepTTL)
			return nil
		})
		return err
	}
	err := r.client.Watch(ctx, txf, k)
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrConflict
	}
	return err
}

// Extend rewrites the record with its new deadline and cap, re-pinning the
// key TTL to the new expiry.
func (r *Repository) Extend(ctx context.Context, id uuid.UUID, newExpiresAt time.Time, newMaxViews int) error {
	k := key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return err
		}
		sec, err := decode(data)
		if err != nil {
			return err
		}
		sec.ExpiresAt = newExpiresAt
		sec.MaxViews = newMaxViews
		newData, err := encode(sec)
		if err != nil {
			return err
		}
		ttl := time.Until(newExpiresAt)
		if ttl <= 0 {
			return domain.ErrInvalidRequest
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, newData, ttl)
			return nil
		})
		return err
	}
	err := r.client.Watch(ctx, txf, k)
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrConflict
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, key(id)).Err()
}

// CleanupExpired scans for records whose stored deadline has passed but
// whose key TTL outlived it (possible after ad-hoc PERSIST or clock skew).
// Under normal operation Redis has already evicted them and the sweep
// deletes nothing.
func (r *Repository) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		data, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // evicted between SCAN and GET
			}
			return n, err
		}
		sec, err := decode(data)
		if err != nil {
			return n, err
		}
		if sec.ExpiresAt.Before(now) {
			if err := r.client.Del(ctx, k).Err(); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, iter.Err()
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func encode(sec *domain.Secret) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*domain.Secret, error) {
	var sec domain.Secret
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

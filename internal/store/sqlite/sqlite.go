// Package sqlite provides a SQLite-backed implementation of the
// store.Repository port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/veil-sh/veil/internal/domain"
	"github.com/veil-sh/veil/internal/store"

	// database/sql SQLite driver
	sqlite3 "github.com/mattn/go-sqlite3"
)

var _ store.Repository = (*Repository)(nil)

// Repository implements store.Repository using SQLite (via database/sql).
// It is safe for concurrent use; database/sql manages connection pooling and
// the conditional UPDATE in UpdateCounters supplies the CAS guarantee.
type Repository struct{ db *sql.DB }

// New constructs a Repository, initializing the required schema if absent.
func New(db *sql.DB) (*Repository, error) {
	r := &Repository{db: db}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) init() error {
	schema := `CREATE TABLE IF NOT EXISTS secrets (
id TEXT PRIMARY KEY,
ciphertext TEXT NOT NULL,
credential_hash TEXT NOT NULL,
created_at INTEGER NOT NULL,
expires_at INTEGER NOT NULL,
max_views INTEGER NOT NULL DEFAULT 0,
views INTEGER NOT NULL DEFAULT 0,
extendable INTEGER NOT NULL DEFAULT 1,
failed_attempts INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_secrets_expires_at ON secrets(expires_at);`
	_, err := r.db.Exec(schema)
	return err
}

// Create inserts a new record row.
func (r *Repository) Create(ctx context.Context, sec *domain.Secret) error {
	const q = `INSERT INTO secrets (id, ciphertext, credential_hash, created_at, expires_at, max_views, views, extendable, failed_attempts)
VALUES (?,?,?,?,?,?,?,?,?)`
	ext := 0
	if sec.Extendable {
		ext = 1
	}
	_, err := r.db.ExecContext(ctx, q,
		sec.ID.String(), sec.Ciphertext, sec.CredentialHash,
		sec.CreatedAt.Unix(), sec.ExpiresAt.Unix(),
		sec.MaxViews, sec.Views, ext, sec.FailedAttempts)
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return store.ErrDuplicateID
	}
	return err
}

// Get fetches a record by id. Expiry is not interpreted here; callers decide
// whether an expired row constitutes not found.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	const q = `SELECT ciphertext, credential_hash, created_at, expires_at, max_views, views, extendable, failed_attempts
FROM secrets WHERE id=?`
	var (
		sec         domain.Secret
		createdUnix int64
		expiresUnix int64
		extendInt   int
	)
	row := r.db.QueryRowContext(ctx, q, id.String())
	if err := row.Scan(&sec.Ciphertext, &sec.CredentialHash, &createdUnix, &expiresUnix, &sec.MaxViews, &sec.Views, &extendInt, &sec.FailedAttempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	sec.ID = id
	sec.CreatedAt = time.Unix(createdUnix, 0).UTC()
	sec.ExpiresAt = time.Unix(expiresUnix, 0).UTC()
	sec.Extendable = extendInt == 1
	return &sec, nil
}

// UpdateCounters performs the conditional counter write. The WHERE clause
// carries the expected pre-image, so a row changed by a concurrent writer
// matches nothing and surfaces as ErrConflict.
func (r *Repository) UpdateCounters(ctx context.Context, id uuid.UUID, expected, next domain.Counters) error {
	const q = `UPDATE secrets SET views=?, failed_attempts=?
WHERE id=? AND views=? AND failed_attempts=?`
	res, err := r.db.ExecContext(ctx, q, next.Views, next.FailedAttempts, id.String(), expected.Views, expected.FailedAttempts)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Distinguish a lost race from a deleted record.
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM secrets WHERE id=?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrConflict
}

// Extend replaces the expiry and view cap in a single statement.
func (r *Repository) Extend(ctx context.Context, id uuid.UUID, newExpiresAt time.Time, newMaxViews int) error {
	const q = `UPDATE secrets SET expires_at=?, max_views=? WHERE id=?`
	res, err := r.db.ExecContext(ctx, q, newExpiresAt.Unix(), newMaxViews, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete hard-deletes the row. Absent ids are not an error.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id=?`, id.String())
	return err
}

// CleanupExpired deletes all rows whose deadline precedes now. The
// expires_at index keeps the sweep cheap.
func (r *Repository) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

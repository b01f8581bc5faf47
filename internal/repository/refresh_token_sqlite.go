package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/hotel-booking/internal/domain"
)

const sqliteRefreshTokenSchema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
    subject   TEXT    PRIMARY KEY,
    token     TEXT    NOT NULL,
    stored_at INTEGER NOT NULL
)`

// SQLiteRefreshTokenStore stores refresh tokens in SQLite.
type SQLiteRefreshTokenStore struct {
	db *sql.DB
}

// NewSQLiteRefreshTokenStore creates the refresh_tokens table if needed and
// returns a store over it. stored_at is kept as unix nanoseconds.
func NewSQLiteRefreshTokenStore(ctx context.Context, db *sql.DB) (*SQLiteRefreshTokenStore, error) {
	if _, err := db.ExecContext(ctx, sqliteRefreshTokenSchema); err != nil {
		return nil, fmt.Errorf("create refresh_tokens table: %w", err)
	}
	return &SQLiteRefreshTokenStore{db: db}, nil
}

func (r *SQLiteRefreshTokenStore) Put(ctx context.Context, subject, token string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (subject, token, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(subject) DO UPDATE SET token = excluded.token, stored_at = excluded.stored_at`,
		subject, token, now.UnixNano())
	if err != nil {
		return storageError("put refresh token", err)
	}
	return nil
}

func (r *SQLiteRefreshTokenStore) Get(ctx context.Context, subject string) (*domain.RefreshTokenRecord, error) {
	var rec domain.RefreshTokenRecord
	var storedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT subject, token, stored_at FROM refresh_tokens WHERE subject = ?`, subject,
	).Scan(&rec.Subject, &rec.Token, &storedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, storageError("get refresh token", err)
	}
	rec.StoredAt = time.Unix(0, storedAt).UTC()
	return &rec, nil
}

func (r *SQLiteRefreshTokenStore) Delete(ctx context.Context, subject string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE subject = ?`, subject); err != nil {
		return storageError("delete refresh token", err)
	}
	return nil
}

func (r *SQLiteRefreshTokenStore) Swap(ctx context.Context, subject, expected, next string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET token = ?, stored_at = ? WHERE subject = ? AND token = ?`,
		next, now.UnixNano(), subject, expected)
	if err != nil {
		return false, storageError("swap refresh token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError("swap refresh token", err)
	}
	return n == 1, nil
}

func (r *SQLiteRefreshTokenStore) PurgeStoredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE stored_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, storageError("purge refresh tokens", err)
	}
	count, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hotel-booking/internal/domain"
	"github.com/spec-kit/hotel-booking/internal/persistence"
)

// PostgresRefreshTokenStore stores refresh tokens in Postgres.
type PostgresRefreshTokenStore struct {
	db persistence.DBTX
}

// NewPostgresRefreshTokenStore returns a store over the refresh_tokens table.
// Each subject is a single row, so row-level writes give last-writer-wins.
func NewPostgresRefreshTokenStore(db persistence.DBTX) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{db: db}
}

func (r *PostgresRefreshTokenStore) Put(ctx context.Context, subject, token string, now time.Time) error {
	const query = `
        INSERT INTO refresh_tokens (subject, token, stored_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (subject) DO UPDATE SET token = EXCLUDED.token, stored_at = EXCLUDED.stored_at`

	if _, err := r.db.Exec(ctx, query, subject, token, now.UTC()); err != nil {
		return storageError("put refresh token", err)
	}
	return nil
}

func (r *PostgresRefreshTokenStore) Get(ctx context.Context, subject string) (*domain.RefreshTokenRecord, error) {
	const query = `
        SELECT subject, token, stored_at
        FROM refresh_tokens WHERE subject=$1`

	var rec domain.RefreshTokenRecord
	if err := r.db.QueryRow(ctx, query, subject).Scan(&rec.Subject, &rec.Token, &rec.StoredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, storageError("get refresh token", err)
	}
	return &rec, nil
}

func (r *PostgresRefreshTokenStore) Delete(ctx context.Context, subject string) error {
	const query = `DELETE FROM refresh_tokens WHERE subject=$1`

	if _, err := r.db.Exec(ctx, query, subject); err != nil {
		return storageError("delete refresh token", err)
	}
	return nil
}

func (r *PostgresRefreshTokenStore) Swap(ctx context.Context, subject, expected, next string, now time.Time) (bool, error) {
	const query = `
        UPDATE refresh_tokens SET token=$3, stored_at=$4
        WHERE subject=$1 AND token=$2`

	cmd, err := r.db.Exec(ctx, query, subject, expected, next, now.UTC())
	if err != nil {
		return false, storageError("swap refresh token", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PostgresRefreshTokenStore) PurgeStoredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE stored_at < $1`

	cmd, err := r.db.Exec(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, storageError("purge refresh tokens", err)
	}
	return cmd.RowsAffected(), nil
}

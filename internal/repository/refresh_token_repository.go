package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/hotel-booking/internal/domain"
)

var (
	// ErrRefreshTokenNotFound is returned by Get when the subject has no record.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenCorrupt is returned by Get when the stored record cannot be decoded.
	ErrRefreshTokenCorrupt = errors.New("refresh token record corrupt")
)

// RefreshTokenStore keeps at most one refresh token per subject. Writes for a
// subject are single atomic operations of the backing store, so the last
// successful Put or Swap determines the only valid token.
type RefreshTokenStore interface {
	// Put stores token for subject, replacing any previous record.
	Put(ctx context.Context, subject, token string, now time.Time) error
	// Get returns the stored record or ErrRefreshTokenNotFound.
	Get(ctx context.Context, subject string) (*domain.RefreshTokenRecord, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, subject string) error
	// Swap replaces the stored token with next only if it currently equals
	// expected. It reports whether the swap happened.
	Swap(ctx context.Context, subject, expected, next string, now time.Time) (bool, error)
}

// StalePurger is implemented by stores that do not expire records natively.
type StalePurger interface {
	// PurgeStoredBefore deletes records stored before cutoff and returns how many were removed.
	PurgeStoredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}

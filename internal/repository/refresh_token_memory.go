package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/hotel-booking/internal/domain"
)

// MemoryRefreshTokenStore keeps records in process memory. It is not durable
// and is meant for tests and single-process development.
type MemoryRefreshTokenStore struct {
	mu      sync.Mutex
	records map[string]domain.RefreshTokenRecord
}

// NewMemoryRefreshTokenStore creates an empty store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{records: make(map[string]domain.RefreshTokenRecord)}
}

func (m *MemoryRefreshTokenStore) Put(ctx context.Context, subject, token string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return storageError("put refresh token", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[subject] = domain.RefreshTokenRecord{Subject: subject, Token: token, StoredAt: now}
	return nil
}

func (m *MemoryRefreshTokenStore) Get(ctx context.Context, subject string) (*domain.RefreshTokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("get refresh token", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[subject]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	return &rec, nil
}

func (m *MemoryRefreshTokenStore) Delete(ctx context.Context, subject string) error {
	if err := ctx.Err(); err != nil {
		return storageError("delete refresh token", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, subject)
	return nil
}

func (m *MemoryRefreshTokenStore) Swap(ctx context.Context, subject, expected, next string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storageError("swap refresh token", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[subject]
	if !ok || rec.Token != expected {
		return false, nil
	}
	m.records[subject] = domain.RefreshTokenRecord{Subject: subject, Token: next, StoredAt: now}
	return true, nil
}

func (m *MemoryRefreshTokenStore) PurgeStoredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageError("purge refresh tokens", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for subject, rec := range m.records {
		if rec.StoredAt.Before(cutoff) {
			delete(m.records, subject)
			purged++
		}
	}
	return purged, nil
}

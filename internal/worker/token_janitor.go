package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/hotel-booking/internal/clock"
	"github.com/spec-kit/hotel-booking/internal/repository"
)

// TokenJanitor deletes refresh token records whose token has necessarily
// expired. Stores with native expiry (Redis) do not need it.
type TokenJanitor struct {
	purger     repository.StalePurger
	refreshTTL time.Duration
	interval   time.Duration
	clock      clock.Clock
	logger     *zap.Logger
}

// NewTokenJanitor builds a janitor that runs every interval.
func NewTokenJanitor(purger repository.StalePurger, refreshTTL, interval time.Duration, clk clock.Clock, logger *zap.Logger) *TokenJanitor {
	return &TokenJanitor{
		purger:     purger,
		refreshTTL: refreshTTL,
		interval:   interval,
		clock:      clk,
		logger:     logger,
	}
}

// RunOnce purges records stored more than one refresh TTL ago.
func (j *TokenJanitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.clock.Now().Add(-j.refreshTTL)
	purged, err := j.purger.PurgeStoredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		j.logger.Info("purged stale refresh tokens", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	}
	return purged, nil
}

// Start runs the janitor until ctx is cancelled.
func (j *TokenJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Warn("refresh token purge failed", zap.Error(err))
			}
		}
	}
}

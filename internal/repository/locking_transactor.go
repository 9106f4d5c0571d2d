package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/pkg/logger"
	pkgredis "github.com/imanidev/VacayStay/pkg/redis"
	"github.com/imanidev/VacayStay/pkg/retry"
	"go.uber.org/zap"
)

const spotLockKeyPrefix = "booking:spot-lock:"

// SpotLocker hands out exclusive per-key locks
type SpotLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (*pkgredis.Lock, error)
}

// LockingStore gates writers on a spot with a Redis lock before entering the
// underlying store's own critical section, so contending instances back off
// without holding database connections. Reads pass straight through.
type LockingStore struct {
	IntervalStore
	locker SpotLocker
	ttl    time.Duration
}

func NewLockingStore(inner IntervalStore, locker SpotLocker, ttl time.Duration) *LockingStore {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &LockingStore{IntervalStore: inner, locker: locker, ttl: ttl}
}

func (s *LockingStore) WithinSpot(ctx context.Context, spotID string, fn func(ctx context.Context, tx SpotTx) error) error {
	lock, err := s.locker.TryLock(ctx, spotLockKeyPrefix+spotID, s.ttl)
	if errors.Is(err, pkgredis.ErrLockNotAcquired) {
		return retry.Retryable(fmt.Errorf("%w: spot %s locked by another writer", domain.ErrContention, spotID))
	}
	if err != nil {
		return err
	}
	defer func() {
		// the lock must be freed even when ctx is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			logger.Get().Warn("failed to release spot lock", zap.String("spot_id", spotID), zap.Error(err))
		}
	}()

	return s.IntervalStore.WithinSpot(ctx, spotID, fn)
}

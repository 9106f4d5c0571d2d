package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const spotCacheKeyPrefix = "spot:"

// SpotCache is the subset of Redis commands the cache uses
type SpotCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedSpotRepository is a read-through Redis cache over another SpotRepository.
// Redis failures fall through to next.
type CachedSpotRepository struct {
	next  SpotRepository
	cache SpotCache
	ttl   time.Duration
}

func NewCachedSpotRepository(next SpotRepository, cache SpotCache, ttl time.Duration) *CachedSpotRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSpotRepository{next: next, cache: cache, ttl: ttl}
}

func (r *CachedSpotRepository) GetSpot(ctx context.Context, id string) (*domain.Spot, error) {
	key := spotCacheKeyPrefix + id

	raw, err := r.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s domain.Spot
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			return &s, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.Get().Warn("spot cache read failed", zap.String("spot_id", id), zap.Error(err))
	}

	spot, err := r.next.GetSpot(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(spot); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl).Err(); err != nil {
			logger.Get().Warn("spot cache write failed", zap.String("spot_id", id), zap.Error(err))
		}
	}
	return spot, nil
}

// Invalidate drops the cached entry for id
func (r *CachedSpotRepository) Invalidate(ctx context.Context, id string) error {
	return r.cache.Del(ctx, spotCacheKeyPrefix+id).Err()
}

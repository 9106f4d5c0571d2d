package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/imanidev/VacayStay/internal/domain"
	pkgredis "github.com/imanidev/VacayStay/pkg/redis"
	"github.com/imanidev/VacayStay/pkg/retry"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSpotRepo struct {
	SpotRepository
	calls int
}

func (r *countingSpotRepo) GetSpot(ctx context.Context, id string) (*domain.Spot, error) {
	r.calls++
	return r.SpotRepository.GetSpot(ctx, id)
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestCachedSpotRepository(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	inner := &countingSpotRepo{SpotRepository: NewMemorySpotRepository(domain.Spot{ID: "s1", OwnerID: "host"})}
	repo := NewCachedSpotRepository(inner, client, time.Minute)

	for i := 0; i < 3; i++ {
		spot, err := repo.GetSpot(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "host", spot.OwnerID)
	}
	assert.Equal(t, 1, inner.calls)
	assert.True(t, mr.Exists("spot:s1"))

	_, err := repo.GetSpot(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSpotNotFound)
	assert.False(t, mr.Exists("spot:missing"))

	require.NoError(t, repo.Invalidate(ctx, "s1"))
	_, err = repo.GetSpot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestCachedSpotRepository_RedisDownFallsThrough(t *testing.T) {
	client, mr := newRedis(t)
	mr.Close()
	repo := NewCachedSpotRepository(NewMemorySpotRepository(domain.Spot{ID: "s1", OwnerID: "host"}), client, time.Minute)

	spot, err := repo.GetSpot(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", spot.ID)
}

func TestLockingStore(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	locker := pkgredis.Wrap(client)
	store := NewLockingStore(NewMemoryIntervalStore(time.Second, nil), locker, time.Second)

	err := store.WithinSpot(ctx, "spot-1", func(ctx context.Context, tx SpotTx) error {
		assert.True(t, mr.Exists(spotLockKeyPrefix+"spot-1"))

		// a second writer on the same spot is turned away as contention
		inner := store.WithinSpot(ctx, "spot-1", func(ctx context.Context, tx SpotTx) error { return nil })
		assert.ErrorIs(t, inner, domain.ErrContention)
		assert.True(t, retry.IsRetryable(inner))

		return tx.Insert(ctx, newBooking("a", "spot-1", "u1", "2024-09-01", "2024-09-02"))
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(spotLockKeyPrefix+"spot-1"), "lock released")

	got, err := store.GetBooking(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "spot-1", got.SpotID)
}

func TestLockingStore_ReleasesOnError(t *testing.T) {
	client, mr := newRedis(t)
	store := NewLockingStore(NewMemoryIntervalStore(time.Second, nil), pkgredis.Wrap(client), time.Second)

	boom := errors.New("boom")
	err := store.WithinSpot(context.Background(), "spot-1", func(ctx context.Context, tx SpotTx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(spotLockKeyPrefix+"spot-1"))
}

func TestMemoryOutboxRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOutboxRepository()
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	for i, id := range []string{"m1", "m2", "m3"} {
		repo.add(&domain.OutboxMessage{ID: id, Status: domain.OutboxStatusPending, MaxRetries: 2, CreatedAt: now.Add(time.Duration(i) * time.Second)})
	}

	pending, err := repo.GetPendingMessages(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, []string{pending[0].ID, pending[1].ID})

	require.NoError(t, repo.MarkAsPublished(ctx, "m1"))
	require.NoError(t, repo.MarkAsFailed(ctx, "m2", "broker down"))
	assert.Error(t, repo.MarkAsPublished(ctx, "nope"))

	failed, err := repo.GetFailedMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "m2", failed[0].ID)

	require.NoError(t, repo.MarkAsFailed(ctx, "m2", "still down"))
	failed, _ = repo.GetFailedMessages(ctx, 10)
	assert.Empty(t, failed, "retries exhausted")

	n, err := repo.DeletePublished(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.AddDate(0, 0, 8)
	n, err = repo.DeletePublished(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, repo.All(), 2)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	spots := NewMemorySpotRepository()
	store := NewMemoryIntervalStore(time.Second, nil)
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, Seed(ctx, spots, store, now))
	require.NoError(t, Seed(ctx, spots, store, now), "seeding twice is harmless")

	spot, err := spots.GetSpot(ctx, "spot-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", spot.OwnerID)

	list, err := store.ListBySpot(ctx, "spot-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"booking-1", "booking-2"}, ids(list))
	assert.Equal(t, rng("2024-09-10", "2024-09-15"), list[0].Range())
}

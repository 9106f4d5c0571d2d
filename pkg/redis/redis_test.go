package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imanidev/VacayStay/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 7})
	assert.Equal(t, "cache:6380", cfg.Addr())
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 7, cfg.PoolSize)
	assert.Equal(t, 5, cfg.MinIdleConns)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Host = mr.Host()
	cfg.Port = mustPort(t, mr)

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 1
	cfg.MaxRetries = 1
	cfg.RetryInterval = time.Millisecond
	cfg.DialTimeout = 50 * time.Millisecond

	_, err := NewClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestClient_BasicOperations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute).Err())
	val, err := client.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	ok, err := client.SetNX(ctx, "k", "other", time.Minute).Result()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Del(ctx, "k").Err())
	_, err = client.Get(ctx, "k").Result()
	assert.True(t, errors.Is(err, Nil))
}

func TestClient_EvalWithFallback_ReloadsAfterFlush(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	script := `return ARGV[1]`

	out, err := client.EvalWithFallback(ctx, "echo", script, nil, "first").Text()
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	require.NoError(t, client.Client().ScriptFlush(ctx).Err())

	out, err = client.EvalWithFallback(ctx, "echo", script, nil, "second").Text()
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestIsNoScriptError(t *testing.T) {
	assert.False(t, isNoScriptError(nil))
	assert.True(t, isNoScriptError(errors.New("NOSCRIPT No matching script. Please use EVAL.")))
	assert.False(t, isNoScriptError(errors.New("ERR something")))
}

func TestLock(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	lock, err := client.TryLock(ctx, "lock:spot:1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "lock:spot:1", lock.Key())

	_, err = client.TryLock(ctx, "lock:spot:1", time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// another spot is independent
	other, err := client.TryLock(ctx, "lock:spot:2", time.Second)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("lock:spot:1"))

	relocked, err := client.TryLock(ctx, "lock:spot:1", time.Second)
	require.NoError(t, err)
	defer relocked.Release(ctx)
}

func TestLock_ReleaseDoesNotStealNewHolder(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	stale, err := client.TryLock(ctx, "lock:spot:9", 100*time.Millisecond)
	require.NoError(t, err)

	mr.FastForward(200 * time.Millisecond)
	fresh, err := client.TryLock(ctx, "lock:spot:9", time.Second)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("lock:spot:9"))

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists("lock:spot:9"))
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}

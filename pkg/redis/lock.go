package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLockNotAcquired means another holder owns the key
var ErrLockNotAcquired = errors.New("redis lock not acquired")

const releaseLockScriptName = "release_lock"

// deletes the key only while it still holds our token
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Lock is a held token lock on a single key
type Lock struct {
	client *Client
	key    string
	token  string
}

// TryLock acquires key for ttl without waiting
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &Lock{client: c, key: key, token: token}, nil
}

// Key returns the locked key
func (l *Lock) Key() string {
	return l.key
}

// Release frees the lock if it is still ours. Releasing an expired lock is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	err := l.client.EvalWithFallback(ctx, releaseLockScriptName, releaseLockScript, []string{l.key}, l.token).Err()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

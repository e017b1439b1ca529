package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "conversation:lock:"

// ErrLockBusy indicates another message from the same identity is still
// being handled.
var ErrLockBusy = errors.New("conversation: identity lock busy")

// delete only if we still own the lock
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock serializes message handling per identity with a SET NX lease.
// The TTL bounds both how long a holder may work and how long a contender
// will wait; a crashed holder's lock simply expires.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLock creates an identity lock backed by Redis.
func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLock{client: client, ttl: ttl}
}

// Acquire takes the lock for the identity, polling until the TTL window
// elapses. The returned release is safe to call after expiry: it only
// deletes the key while this caller still owns it.
func (l *RedisLock) Acquire(ctx context.Context, identity string) (func(), error) {
	key := lockKeyPrefix + identity
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("conversation: acquire identity lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort; an orphaned lock expires with the TTL.
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}

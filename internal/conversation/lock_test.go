package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLockFixture(t *testing.T, ttl time.Duration) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLock(client, ttl), mr
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	lock, mr := newLockFixture(t, time.Second)

	release, err := lock.Acquire(context.Background(), "+919876543210")
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockKeyPrefix+"+919876543210"))

	release()
	assert.False(t, mr.Exists(lockKeyPrefix+"+919876543210"))

	// Reacquirable immediately after release.
	release2, err := lock.Acquire(context.Background(), "+919876543210")
	require.NoError(t, err)
	release2()
}

func TestRedisLock_ContendedAcquireTimesOut(t *testing.T) {
	lock, _ := newLockFixture(t, 150*time.Millisecond)

	release, err := lock.Acquire(context.Background(), "+919876543210")
	require.NoError(t, err)
	defer release()

	_, err = lock.Acquire(context.Background(), "+919876543210")
	assert.ErrorIs(t, err, ErrLockBusy)
}

func TestRedisLock_IndependentIdentities(t *testing.T) {
	lock, _ := newLockFixture(t, time.Second)

	releaseA, err := lock.Acquire(context.Background(), "+911111111111")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := lock.Acquire(context.Background(), "+922222222222")
	require.NoError(t, err)
	defer releaseB()
}

func TestRedisLock_ExpiredLockIsReacquirable(t *testing.T) {
	lock, mr := newLockFixture(t, 200*time.Millisecond)

	_, err := lock.Acquire(context.Background(), "+919876543210")
	require.NoError(t, err)

	mr.FastForward(250 * time.Millisecond)

	release, err := lock.Acquire(context.Background(), "+919876543210")
	require.NoError(t, err)
	release()
}

func TestRedisLock_ReleaseOnlyDeletesOwnToken(t *testing.T) {
	lock, mr := newLockFixture(t, time.Second)
	key := lockKeyPrefix + "+919876543210"

	release, err := lock.Acquire(context.Background(), "+919876543210")
	require.NoError(t, err)

	// Another holder took over after our lease lapsed.
	require.NoError(t, mr.Set(key, "someone-else"))

	release()

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got, "release must not clobber a lock it no longer owns")
}

func TestRedisLock_AcquireHonorsContext(t *testing.T) {
	lock, _ := newLockFixture(t, 5*time.Second)

	release, err := lock.Acquire(context.Background(), "+919876543210")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = lock.Acquire(ctx, "+919876543210")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisadapter "github.com/jmorenobl/soni-sub003/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*redisadapter.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisadapter.NewLocker(client, "soni:session:"), mr
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("soni:session:lock:s1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("soni:session:lock:s1"))
}

func TestLocker_BlocksUntilReleased(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)

	// A second holder cannot acquire while the lock lives.
	shortCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(shortCtx, "s1", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_UnlockOnlyReleasesOwnLock(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", 50*time.Millisecond)
	require.NoError(t, err)

	// The TTL expires and another holder takes the lock.
	mr.FastForward(time.Second)
	unlock2, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)

	// The stale holder's unlock must not clobber the new lock.
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("soni:session:lock:s1"))

	require.NoError(t, unlock2(ctx))
	assert.False(t, mr.Exists("soni:session:lock:s1"))
}

func TestLocker_DistinctKeysDoNotContend(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	unlock2, err := locker.Lock(ctx, "s2", time.Minute)
	require.NoError(t, err)

	require.NoError(t, unlock1(ctx))
	require.NoError(t, unlock2(ctx))
}

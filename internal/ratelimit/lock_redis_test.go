package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestRedisLockerExclusive(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()
	const key = "postscan:lock:01H"

	token, ok, err := locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must wait")

	require.NoError(t, locker.Release(ctx, key, "someone-else"))
	assert.True(t, mr.Exists(key), "a foreign token must not release the lock")

	require.NoError(t, locker.Release(ctx, key, token))
	assert.False(t, mr.Exists(key))

	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpires(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()
	const key = "postscan:lock:01J"

	_, ok, err := locker.TryLock(ctx, key, 2*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2*time.Minute + time.Second)
	_, ok, err = locker.TryLock(ctx, key, 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lock is free")
}

func TestRedisLockerValidation(t *testing.T) {
	locker, _ := newRedisLocker(t)
	_, _, err := locker.TryLock(context.Background(), "", time.Minute)
	assert.Error(t, err)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
}

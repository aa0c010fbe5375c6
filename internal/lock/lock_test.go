package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dormitory/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "test:"), mr
}

func TestRedisLockerExclusive(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "floor:3", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:floor:3"))

	_, ok, err = l.TryLock(ctx, "floor:3", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.TryLock(ctx, "floor:4", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "floor:3", token))
	assert.False(t, mr.Exists("test:floor:3"))
}

func TestRedisLockerReleaseIgnoresForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	_, ok, err := l.TryLock(ctx, "floor:3", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "floor:3", "someone-else"))
	assert.True(t, mr.Exists("test:floor:3"))
}

func TestRedisLockerExpires(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	_, ok, err := l.TryLock(ctx, "floor:3", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, "floor:3", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLocker(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocalLocker(clk)
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "floor:3", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "floor:3", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "floor:3", "stale"))
	_, ok, _ = l.TryLock(ctx, "floor:3", time.Minute)
	assert.False(t, ok)

	clk.Advance(2 * time.Minute)
	_, ok, _ = l.TryLock(ctx, "floor:3", time.Minute)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "floor:3", token))
}

func TestTryLockValidates(t *testing.T) {
	l := NewLocalLocker(clock.SystemClock{})
	_, _, err := l.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = l.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestNewSelectsImplementation(t *testing.T) {
	assert.IsType(t, &LocalLocker{}, New(nil, clock.SystemClock{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &RedisLocker{}, New(client, clock.SystemClock{}))
}

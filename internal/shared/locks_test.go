package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestPeriodLockerSerialisesHolders(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	locker := NewPeriodLocker(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, 7))
	require.ErrorIs(t, locker.Acquire(ctx, 7), ErrPeriodLocked)

	// Locks on other periods are independent.
	require.NoError(t, locker.Acquire(ctx, 8))

	locker.Release(ctx, 7)
	require.NoError(t, locker.Acquire(ctx, 7))
}

func TestPeriodLockerExpires(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	locker := NewPeriodLocker(client, time.Second)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, 9))
	srv.FastForward(2 * time.Second)
	require.NoError(t, locker.Acquire(ctx, 9))
}

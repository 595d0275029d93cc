package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallCooldown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cd := NewCallCooldown(rdb, time.Minute)
	ctx := context.Background()

	ok, err := cd.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cd.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire inside the window must fail")

	ok, err = cd.Acquire(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok, "other users are independent")

	require.NoError(t, cd.Release(ctx, 1))
	ok, err = cd.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = cd.Acquire(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok, "slot expires with the window")
}

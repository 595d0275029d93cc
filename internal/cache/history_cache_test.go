package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmate/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewHistoryCache(rdb, time.Minute, 5*time.Second), mr
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.False(t, hit)

	msgs := []model.Message{
		{ID: 1, SessionID: 1, Role: model.RoleUser, Content: "hi"},
		{ID: 2, SessionID: 1, Role: model.RoleAssistant, Content: "hello"},
	}
	require.NoError(t, c.SetHistory(ctx, 1, msgs))

	got, hit, err := c.GetHistory(ctx, 1)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[1].Content)
}

func TestHistoryCacheInvalidateMarksDirty(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetHistory(ctx, 9, []model.Message{{ID: 1, Content: "x"}}))
	require.NoError(t, c.Invalidate(ctx, 9))

	dirty, err := c.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.True(t, dirty)

	_, hit, err := c.GetHistory(ctx, 9)
	require.NoError(t, err)
	assert.False(t, hit)

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestHistoryCacheDeleteClearsMarker(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Invalidate(ctx, 4))
	require.NoError(t, c.DeleteHistory(ctx, 4))

	dirty, err := c.IsDirty(ctx, 4)
	require.NoError(t, err)
	assert.False(t, dirty)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache()
	t.Cleanup(c.Stop)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInMemoryCache_EvictExpiredDropsUnreadKeys(t *testing.T) {
	c := NewInMemoryCache()
	t.Cleanup(c.Stop)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("heatmap:%d,1,2,3", i), []byte("x"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "rewards:active", []byte("x"), 2*time.Hour))

	now = now.Add(time.Hour)
	c.mu.Lock()
	c.evictExpired()
	held := len(c.data)
	c.mu.Unlock()

	assert.Equal(t, 1, held)
}

func TestInMemoryCache_JanitorSweeps(t *testing.T) {
	c := &InMemoryCache{
		data:       make(map[string]cacheEntry),
		now:        time.Now,
		maxEntries: defaultMaxEntries,
		sweepTick:  time.NewTicker(5 * time.Millisecond),
		stopSweep:  make(chan struct{}),
	}
	go c.janitor()
	t.Cleanup(c.Stop)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Millisecond))

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.data) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCache_SetIsBounded(t *testing.T) {
	c := NewInMemoryCache()
	t.Cleanup(c.Stop)
	c.maxEntries = 3
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.data, 3)
	assert.Contains(t, c.data, "k9")
}

func TestInMemoryCache_StopIsIdempotent(t *testing.T) {
	c := NewInMemoryCache()
	c.Stop()
	assert.NotPanics(t, c.Stop)
}

func TestInMemoryCache_DeletePrefix(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()
	for _, k := range []string{"heatmap:all", "heatmap:1,2,3,4", "rewards:active"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), time.Minute))
	}

	require.NoError(t, c.DeletePrefix(ctx, "heatmap:"))

	_, err := c.Get(ctx, "heatmap:all")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(ctx, "rewards:active")
	assert.NoError(t, err)
}

func TestGetOrLoad(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()
	loads := 0
	load := func() ([]string, error) {
		loads++
		return []string{"a", "b"}, nil
	}

	first, err := GetOrLoad(ctx, c, "list", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, "list", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	_, err = GetOrLoad(ctx, nil, "list", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)

	_, err = GetOrLoad(ctx, c, "broken", time.Minute, func() (int, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := NewRedisClient(addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisCache(client, "civic-test:")
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "heatmap:x", []byte("1"), time.Minute))
	got, err := c.Get(ctx, "heatmap:x")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, c.DeletePrefix(ctx, "heatmap:"))
	_, err = c.Get(ctx, "heatmap:x")
	assert.ErrorIs(t, err, ErrNotFound)
}

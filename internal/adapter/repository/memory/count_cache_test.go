package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/event-counter/internal/domain"
)

func TestCountCache(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1722100000000)
	cache := NewCountCache(time.Minute, 2)
	cache.now = func() time.Time { return now }

	a := domain.CountFilter{ExternalID: "a", Key: "k", UpperID: 1}
	b := domain.CountFilter{ExternalID: "b", Key: "k", UpperID: 1}
	c := domain.CountFilter{ExternalID: "c", Key: "k", UpperID: 1}

	t.Run("miss then hit", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, a)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, cache.Set(ctx, a, 4))
		got, ok, err := cache.Get(ctx, a)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(4), got)
	})

	t.Run("full cache skips new entries", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, b, 5))
		require.NoError(t, cache.Set(ctx, c, 6))

		_, ok, _ := cache.Get(ctx, c)
		assert.False(t, ok)
		assert.Equal(t, 2, cache.Len())

		// Overwriting an existing entry is always allowed.
		require.NoError(t, cache.Set(ctx, a, 7))
		got, ok, _ := cache.Get(ctx, a)
		assert.True(t, ok)
		assert.Equal(t, uint64(7), got)
	})

	t.Run("expired entries are evicted to make room", func(t *testing.T) {
		now = now.Add(2 * time.Minute)

		_, ok, _ := cache.Get(ctx, a)
		assert.False(t, ok)

		require.NoError(t, cache.Set(ctx, c, 6))
		got, ok, _ := cache.Get(ctx, c)
		assert.True(t, ok)
		assert.Equal(t, uint64(6), got)
		assert.Equal(t, 1, cache.Len())
	})
}

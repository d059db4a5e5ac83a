package zonecache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkscout/go-zones/pkg/zonecache"
	"github.com/parkscout/go-zones/pkg/zones"
)

func TestMemoryCache_GetPut(t *testing.T) {
	ctx := context.Background()

	t.Run("Read after write returns the stored collection", func(t *testing.T) {
		// Arrange
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{}, zerolog.Nop())
		sfZones := testZones("sf", 3)
		oakZones := testZones("oak", 2)

		// Act
		c.Put(ctx, "sf", sfZones)
		c.Put(ctx, "oak", oakZones)

		// Assert
		got, ok := c.Get(ctx, "sf")
		require.True(t, ok)
		assert.Equal(t, sfZones, got)

		got, ok = c.Get(ctx, "oak")
		require.True(t, ok)
		assert.Equal(t, oakZones, got)
	})

	t.Run("Missing city is a miss, not an error", func(t *testing.T) {
		// Arrange
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{}, zerolog.Nop())

		// Act
		got, ok := c.Get(ctx, "nowhere")

		// Assert
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("Put replaces an existing entry", func(t *testing.T) {
		// Arrange
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{}, zerolog.Nop())
		c.Put(ctx, "sf", testZones("sf", 1))
		replacement := testZones("sf", 4)

		// Act
		c.Put(ctx, "sf", replacement)

		// Assert
		got, ok := c.Get(ctx, "sf")
		require.True(t, ok)
		assert.Equal(t, replacement, got)
	})
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()

	t.Run("Entry expires once its age exceeds the TTL", func(t *testing.T) {
		// Arrange
		clock := newFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{
			TTL:   10 * time.Second,
			Clock: clock.Now,
		}, zerolog.Nop())
		c.Put(ctx, "sf", testZones("sf", 2))

		// Act & Assert: at exactly the TTL the entry is still fresh.
		clock.Advance(10 * time.Second)
		_, ok := c.Get(ctx, "sf")
		assert.True(t, ok, "An entry aged exactly the TTL should still be served")

		// One second past the TTL the read evicts it.
		clock.Advance(1 * time.Second)
		_, ok = c.Get(ctx, "sf")
		assert.False(t, ok, "An entry older than the TTL should be a miss")
		assert.Equal(t, 0, c.Len(), "The stale entry should be evicted by the read that found it")
	})

	t.Run("Rewriting a city restarts its expiry clock", func(t *testing.T) {
		// Arrange
		clock := newFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{
			TTL:   10 * time.Second,
			Clock: clock.Now,
		}, zerolog.Nop())
		c.Put(ctx, "sf", testZones("sf", 1))

		// Act: rewrite partway through the window, then move past the
		// original deadline.
		clock.Advance(8 * time.Second)
		c.Put(ctx, "sf", testZones("sf", 2))
		clock.Advance(8 * time.Second)

		// Assert
		got, ok := c.Get(ctx, "sf")
		require.True(t, ok, "The rewrite should have restarted the TTL window")
		assert.Len(t, got, 2)
	})

	t.Run("Expiry does not disturb other cities", func(t *testing.T) {
		// Arrange
		clock := newFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{
			TTL:   10 * time.Second,
			Clock: clock.Now,
		}, zerolog.Nop())
		c.Put(ctx, "sf", testZones("sf", 1))
		clock.Advance(8 * time.Second)
		c.Put(ctx, "oak", testZones("oak", 1))
		clock.Advance(4 * time.Second)

		// Act
		_, sfOK := c.Get(ctx, "sf")
		_, oakOK := c.Get(ctx, "oak")

		// Assert
		assert.False(t, sfOK, "sf was written 12s ago and should have expired")
		assert.True(t, oakOK, "oak was written 4s ago and should still be fresh")
	})
}

func TestMemoryCache_Invalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalidate removes only the targeted city", func(t *testing.T) {
		// Arrange
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{}, zerolog.Nop())
		c.Put(ctx, "sf", testZones("sf", 1))
		c.Put(ctx, "oak", testZones("oak", 1))

		// Act
		c.Invalidate(ctx, "sf")

		// Assert
		_, ok := c.Get(ctx, "sf")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "oak")
		assert.True(t, ok)
	})

	t.Run("Invalidating an absent city is a no-op", func(t *testing.T) {
		// Arrange
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{}, zerolog.Nop())

		// Act & Assert: must not panic or invent entries.
		c.Invalidate(ctx, "nowhere")
		assert.Equal(t, 0, c.Len())
	})

	t.Run("InvalidateAll clears every city and resets LastUpdated", func(t *testing.T) {
		// Arrange
		c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{}, zerolog.Nop())
		c.Put(ctx, "sf", testZones("sf", 1))
		c.Put(ctx, "oak", testZones("oak", 1))
		require.False(t, c.LastUpdated().IsZero())

		// Act
		c.InvalidateAll(ctx)

		// Assert
		_, ok := c.Get(ctx, "sf")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "oak")
		assert.False(t, ok)
		assert.True(t, c.LastUpdated().IsZero(), "InvalidateAll should reset LastUpdated to the zero time")
	})
}

func TestMemoryCache_LastUpdated(t *testing.T) {
	ctx := context.Background()

	// Arrange
	clock := newFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{Clock: clock.Now}, zerolog.Nop())

	// Assert: zero before the first write.
	assert.True(t, c.LastUpdated().IsZero())

	// Act
	c.Put(ctx, "sf", testZones("sf", 1))
	first := c.LastUpdated()
	clock.Advance(time.Minute)
	c.Put(ctx, "oak", testZones("oak", 1))

	// Assert
	assert.Equal(t, clock.Now(), c.LastUpdated())
	assert.True(t, c.LastUpdated().After(first), "A later write should advance LastUpdated")
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	// A smoke test for the race detector: hammer one cache from several
	// goroutines mixing every operation.
	ctx := context.Background()
	c := zonecache.NewMemoryCache(zonecache.MemoryCacheConfig{}, zerolog.Nop())
	cities := []zones.CityID{"sf", "oak", "sj", "la"}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				city := cities[(g+i)%len(cities)]
				switch i % 4 {
				case 0:
					c.Put(ctx, city, testZones(city, 1))
				case 1:
					_, _ = c.Get(ctx, city)
				case 2:
					c.Invalidate(ctx, city)
				default:
					_ = c.LastUpdated()
				}
			}
		}(g)
	}
	wg.Wait()

	// The cache must still be coherent afterwards.
	c.Put(ctx, "sf", testZones("sf", 2))
	got, ok := c.Get(ctx, "sf")
	require.True(t, ok)
	assert.Len(t, got, 2)
}

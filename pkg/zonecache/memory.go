package zonecache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkscout/go-zones/pkg/zones"
)

// memoryEntry is the memory tier's record for one city. Entries are replaced
// wholesale on write and never mutated in place, so a slice handed out by Get
// stays valid after a concurrent Put.
type memoryEntry struct {
	zones    []zones.ParkingZone
	storedAt time.Time
}

// MemoryCacheConfig configures the in-memory tier.
type MemoryCacheConfig struct {
	// TTL bounds entry freshness. DefaultTTL is used when zero or negative.
	TTL time.Duration
	// Clock overrides the time source. Defaults to time.Now.
	Clock func() time.Time
}

// MemoryCache is the process-memory tier: a mutex-guarded map from city code
// to a time-stamped zone collection with pure TTL expiry. There is no LRU
// bookkeeping and no background sweeper; an expired entry is evicted lazily
// by the read that discovers it.
type MemoryCache struct {
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu          sync.Mutex
	entries     map[zones.CityID]memoryEntry
	lastUpdated time.Time
}

// NewMemoryCache creates an empty memory tier.
func NewMemoryCache(cfg MemoryCacheConfig, logger zerolog.Logger) *MemoryCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &MemoryCache{
		ttl:     cfg.TTL,
		now:     cfg.Clock,
		logger:  logger.With().Str("component", "MemoryCache").Logger(),
		entries: make(map[zones.CityID]memoryEntry),
	}
}

// Get returns the collection for city if an entry exists and its age is
// within the TTL. A stale entry is deleted before reporting the miss.
func (c *MemoryCache) Get(_ context.Context, city zones.CityID) ([]zones.ParkingZone, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[city]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, city)
		c.logger.Debug().Str("city", city.String()).Msg("Evicted expired cache entry.")
		return nil, false
	}
	return entry.zones, true
}

// Put stores zs for city, stamped at the current time. An existing entry is
// replaced unconditionally.
func (c *MemoryCache) Put(_ context.Context, city zones.CityID, zs []zones.ParkingZone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[city] = memoryEntry{zones: zs, storedAt: now}
	c.lastUpdated = now
}

// Invalidate removes the entry for city if one exists.
func (c *MemoryCache) Invalidate(_ context.Context, city zones.CityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, city)
}

// InvalidateAll drops every entry and resets LastUpdated to the zero time.
func (c *MemoryCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[zones.CityID]memoryEntry)
	c.lastUpdated = time.Time{}
}

// LastUpdated reports the stamp of the most recent Put, or the zero time if
// the cache is empty of writes.
func (c *MemoryCache) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// Len reports the number of entries currently held, including any that have
// expired but not yet been evicted by a read.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

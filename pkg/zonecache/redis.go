package zonecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/parkscout/go-zones/pkg/zones"
)

// redisKeyPrefix namespaces zone entries within a shared Redis deployment.
const redisKeyPrefix = "zones:"

func redisKey(city zones.CityID) string {
	return redisKeyPrefix + city.String()
}

// redisRecord is the stored value for one city: the same version, savedAt,
// and zoneCount metadata the file tier keeps, embedded alongside the payload
// because Redis gives us a single atomic value per key.
type redisRecord struct {
	Version   string              `json:"version"`
	SavedAt   time.Time           `json:"savedAt"`
	ZoneCount int                 `json:"zoneCount"`
	Zones     []zones.ParkingZone `json:"zones"`
}

// RedisCacheConfig configures the Redis-backed tier.
type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds entry lifetime in Redis. DefaultTTL when zero.
	TTL time.Duration
}

// RedisCache is a durable tier backed by a shared Redis deployment, for
// server-side installs where several instances should reuse one cache.
// Entries stamped with an outdated SchemaVersion or inconsistent with their
// zone count are purged on the read that discovers them, exactly like the
// file tier.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu          sync.Mutex
	lastUpdated time.Time
}

var _ ZoneCache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection before
// returning the cache.
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig, logger zerolog.Logger) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With().Str("component", "RedisCache").Logger(),
	}, nil
}

// Get returns city's collection when a current-version entry exists. Redis
// errors are logged and reported as misses so callers fall through to their
// source.
func (c *RedisCache) Get(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, bool) {
	raw, err := c.client.Get(ctx, redisKey(city)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Error().Err(err).Str("city", city.String()).Msg("Redis read failed; treating as miss.")
		return nil, false
	}

	var record redisRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		c.purge(ctx, city, "entry is unreadable")
		return nil, false
	}
	if record.Version != SchemaVersion {
		c.logger.Info().
			Str("city", city.String()).
			Str("found_version", record.Version).
			Str("current_version", SchemaVersion).
			Msg("Cache format version changed; discarding Redis entry.")
		c.delete(ctx, city)
		return nil, false
	}
	if len(record.Zones) != record.ZoneCount {
		c.purge(ctx, city, "entry disagrees with its zone count")
		return nil, false
	}

	c.mu.Lock()
	c.lastUpdated = record.SavedAt
	c.mu.Unlock()
	return record.Zones, true
}

// Put stores zs for city with the configured TTL. A failed write is logged
// and swallowed; there is nothing to fall back to, so the entry is simply
// absent until the next Put.
func (c *RedisCache) Put(ctx context.Context, city zones.CityID, zs []zones.ParkingZone) {
	now := time.Now().UTC()
	record := redisRecord{
		Version:   SchemaVersion,
		SavedAt:   now,
		ZoneCount: len(zs),
		Zones:     zs,
	}
	data, err := json.Marshal(record)
	if err != nil {
		c.logger.Error().Err(err).Str("city", city.String()).Msg("Failed to encode Redis entry.")
		return
	}
	if err := c.client.Set(ctx, redisKey(city), data, c.ttl).Err(); err != nil {
		c.logger.Error().Err(err).Str("city", city.String()).Msg("Redis write failed; entry not stored.")
		return
	}

	c.mu.Lock()
	c.lastUpdated = now
	c.mu.Unlock()
}

// Invalidate removes city's entry. Removing an absent key is a no-op.
func (c *RedisCache) Invalidate(ctx context.Context, city zones.CityID) {
	c.delete(ctx, city)
}

// InvalidateAll removes every zone entry under the key prefix and resets
// LastUpdated.
func (c *RedisCache) InvalidateAll(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Error().Err(err).Str("key", iter.Val()).Msg("Failed to delete Redis entry.")
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to scan Redis entries.")
	}

	c.mu.Lock()
	c.lastUpdated = time.Time{}
	c.mu.Unlock()
}

// LastUpdated reports the savedAt stamp of the most recent successful Put or
// Get, or the zero time when nothing has been stored.
func (c *RedisCache) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) purge(ctx context.Context, city zones.CityID, reason string) {
	c.logger.Warn().Str("city", city.String()).Str("reason", reason).Msg("Purging corrupt Redis entry.")
	c.delete(ctx, city)
}

func (c *RedisCache) delete(ctx context.Context, city zones.CityID) {
	if err := c.client.Del(ctx, redisKey(city)).Err(); err != nil {
		c.logger.Error().Err(err).Str("city", city.String()).Msg("Failed to delete Redis entry.")
	}
}

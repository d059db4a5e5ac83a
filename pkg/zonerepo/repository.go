// Package zonerepo orchestrates cache-or-fetch access to parking zone data.
// The repository is the only component that talks to both a cache tier and a
// data source; everything above it just asks for zones.
package zonerepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkscout/go-zones/pkg/zonecache"
	"github.com/parkscout/go-zones/pkg/zones"
	"github.com/parkscout/go-zones/pkg/zonesource"
)

// Repository serves zone collections cache-first and fills the cache from the
// source on a miss. Source failures propagate to the caller untouched and are
// never cached; the next call retries the source.
type Repository struct {
	cache  zonecache.ZoneCache
	source zonesource.ZoneSource
	logger zerolog.Logger
}

// NewRepository wires a cache tier to a data source.
func NewRepository(cache zonecache.ZoneCache, source zonesource.ZoneSource, logger zerolog.Logger) (*Repository, error) {
	if cache == nil {
		return nil, errors.New("cache cannot be nil")
	}
	if source == nil {
		return nil, errors.New("source cannot be nil")
	}
	return &Repository{
		cache:  cache,
		source: source,
		logger: logger.With().Str("component", "ZoneRepository").Logger(),
	}, nil
}

// GetZones returns the collection for city, from cache when possible. On a
// miss it fetches from the source, populates the cache, and returns the fresh
// collection. A fetch failure leaves the cache untouched.
func (r *Repository) GetZones(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, error) {
	if zs, ok := r.cache.Get(ctx, city); ok {
		r.logger.Debug().Str("city", city.String()).Msg("Cache hit.")
		return zs, nil
	}
	r.logger.Debug().Str("city", city.String()).Msg("Cache miss. Fetching from source.")

	zs, err := r.source.LoadZones(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("failed to load zones for city %q: %w", city, err)
	}

	r.cache.Put(ctx, city, zs)
	return zs, nil
}

// RefreshZones discards the cached entry for city and reloads it from the
// source, with exactly one source fetch. When the fetch fails the city stays
// uncached and the error propagates; callers decide whether to retry.
func (r *Repository) RefreshZones(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, error) {
	r.cache.Invalidate(ctx, city)

	zs, err := r.source.LoadZones(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh zones for city %q: %w", city, err)
	}

	r.cache.Put(ctx, city, zs)
	r.logger.Info().Str("city", city.String()).Int("zone_count", len(zs)).Msg("Refreshed zones from source.")
	return zs, nil
}

// InvalidateAllCaches clears every cached city across all tiers the
// repository was built with.
func (r *Repository) InvalidateAllCaches(ctx context.Context) {
	r.cache.InvalidateAll(ctx)
	r.logger.Info().Msg("Invalidated all cached zones.")
}

// DataVersion reports the source's current data version stamp.
func (r *Repository) DataVersion(ctx context.Context) (string, error) {
	return r.source.DataVersion(ctx)
}

// LastUpdated reports when the cache last accepted or loaded data.
func (r *Repository) LastUpdated() time.Time {
	return r.cache.LastUpdated()
}

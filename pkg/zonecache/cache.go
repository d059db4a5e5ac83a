// Package zonecache provides the tiered parking-zone cache: a TTL-bound
// in-memory tier, a durable file-backed tier that survives restarts and
// purges itself when the stored format changes, and a Redis tier for
// deployments that share cache state across instances.
package zonecache

import (
	"context"
	"time"

	"github.com/parkscout/go-zones/pkg/zones"
)

// DefaultTTL bounds how long a memory-tier entry stays readable after the
// write that created it. Expiry is measured from write time; reads never
// extend it.
const DefaultTTL = 5 * time.Minute

// ZoneCache is the contract shared by every cache tier. A miss is an ordinary
// outcome reported as (nil, false), never an error. Implementations absorb
// their own storage failures and log them; the caller only ever observes a
// hit or a miss.
type ZoneCache interface {
	// Get returns the cached collection for city when one is present and
	// usable. Implementations evict stale or unreadable entries on the read
	// that discovers them.
	Get(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, bool)

	// Put replaces the entry for city with zs, stamped at the time of the
	// call. The collection must not be mutated by the caller afterwards.
	Put(ctx context.Context, city zones.CityID, zs []zones.ParkingZone)

	// Invalidate removes the entry for city. Removing an absent entry is a
	// no-op.
	Invalidate(ctx context.Context, city zones.CityID)

	// InvalidateAll removes every entry and resets LastUpdated.
	InvalidateAll(ctx context.Context)

	// LastUpdated reports when the cache last accepted or loaded data. The
	// zero time means nothing has been written since creation or since the
	// last InvalidateAll.
	LastUpdated() time.Time
}

// Package zonesource defines the supplier contract the zone repository
// fetches from, plus implementations backed by the data pipeline's publish
// targets: Cloud Storage exports, Firestore documents, and an in-memory
// source for tests and fixtures.
package zonesource

import (
	"context"
	"errors"

	"github.com/parkscout/go-zones/pkg/zones"
)

// ErrNotFound reports that a source has no dataset for the requested city.
// Callers check it with errors.Is; everything else a source returns is a
// retrieval or decode failure.
var ErrNotFound = errors.New("zone dataset not found")

// ZoneSource supplies zone collections on demand. Sources are read-through
// suppliers of truth: they never cache and they propagate failures to the
// caller untouched.
type ZoneSource interface {
	// LoadZones fetches the full collection for city. It returns an error
	// wrapping ErrNotFound when the source has no dataset for the city.
	LoadZones(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, error)

	// DataVersion reports the version stamp of the data currently published,
	// the pipeline's date stamp, not the cache format version.
	DataVersion(ctx context.Context) (string, error)
}

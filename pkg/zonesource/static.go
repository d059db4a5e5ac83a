package zonesource

import (
	"context"
	"fmt"
	"sync"

	"github.com/parkscout/go-zones/pkg/zones"
)

// StaticSource serves zone collections from memory. It backs tests and
// fixture-driven development builds where no pipeline output is reachable.
type StaticSource struct {
	mu      sync.RWMutex
	version string
	data    map[zones.CityID][]zones.ParkingZone
}

var _ ZoneSource = (*StaticSource)(nil)

// NewStaticSource creates a source serving data at the given version. The map
// may be nil; cities can be added later with SetZones.
func NewStaticSource(version string, data map[zones.CityID][]zones.ParkingZone) *StaticSource {
	if data == nil {
		data = make(map[zones.CityID][]zones.ParkingZone)
	}
	return &StaticSource{version: version, data: data}
}

// LoadZones returns the fixture collection for city, or ErrNotFound.
func (s *StaticSource) LoadZones(_ context.Context, city zones.CityID) ([]zones.ParkingZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zs, ok := s.data[city]
	if !ok {
		return nil, fmt.Errorf("no fixture for city %q: %w", city, ErrNotFound)
	}
	return zs, nil
}

// DataVersion returns the configured version stamp.
func (s *StaticSource) DataVersion(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

// SetZones replaces the collection served for city.
func (s *StaticSource) SetZones(city zones.CityID, zs []zones.ParkingZone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[city] = zs
}

// SetVersion replaces the version stamp, simulating a pipeline publish.
func (s *StaticSource) SetVersion(version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
}

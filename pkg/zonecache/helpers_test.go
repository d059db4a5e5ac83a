package zonecache_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/parkscout/go-zones/pkg/zones"
)

// fakeClock is a manually advanced time source for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// testZones builds a small, city-distinct collection in the shape the data
// pipeline exports.
func testZones(city zones.CityID, count int) []zones.ParkingZone {
	zs := make([]zones.ParkingZone, 0, count)
	for i := 1; i <= count; i++ {
		zs = append(zs, zones.ParkingZone{
			ID:              fmt.Sprintf("%s_rpp_a_%03d", city, i),
			CityCode:        city,
			DisplayName:     fmt.Sprintf("RPP Area A block %d", i),
			ZoneType:        "rpp",
			PermitArea:      "A",
			RequiresPermit:  true,
			Restrictiveness: 3,
			Boundary: []zones.Coordinate{
				{Latitude: 37.80 + float64(i)/1000, Longitude: -122.41},
				{Latitude: 37.80 + float64(i)/1000, Longitude: -122.40},
				{Latitude: 37.81 + float64(i)/1000, Longitude: -122.405},
			},
			Rules: []zones.ZoneRule{
				{
					ID:               fmt.Sprintf("%s_rpp_a_%03d_r1", city, i),
					RuleType:         "permit",
					Description:      "2 hour limit except permit holders",
					EnforcementDays:  []string{"mon", "tue", "wed", "thu", "fri"},
					EnforcementStart: zones.TimeOfDay{Hour: 8},
					EnforcementEnd:   zones.TimeOfDay{Hour: 18},
					TimeLimitMinutes: 120,
				},
			},
			Metadata: zones.ZoneMetadata{
				DataSource:  "sfmta",
				LastUpdated: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Accuracy:    "high",
			},
		})
	}
	return zs
}

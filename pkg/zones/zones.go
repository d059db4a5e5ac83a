// Package zones holds the parking-zone domain types shared by the cache,
// repository, and data source packages. The shapes mirror the dataset format
// the data pipeline exports for the mobile apps.
package zones

import "time"

// CityID identifies one city dataset. Codes are short, stable, lowercase
// strings assigned by the data pipeline (for example "sf"). It is the sole
// cache key; equality is by value and no ordering is defined.
type CityID string

// String returns the raw city code.
func (c CityID) String() string { return string(c) }

// Coordinate is one vertex of a zone boundary, in WGS84 degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TimeOfDay is a wall-clock instant within a day, used for enforcement windows.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ZoneRule is one regulation enforced inside a zone.
type ZoneRule struct {
	ID                string    `json:"id"`
	RuleType          string    `json:"ruleType"`
	Description       string    `json:"description"`
	EnforcementDays   []string  `json:"enforcementDays"`
	EnforcementStart  TimeOfDay `json:"enforcementStartTime"`
	EnforcementEnd    TimeOfDay `json:"enforcementEndTime"`
	TimeLimitMinutes  int       `json:"timeLimit"`
	MeterRate         *float64  `json:"meterRate"`
	SpecialConditions string    `json:"specialConditions,omitempty"`
}

// ZoneMetadata records the provenance of a zone's data.
type ZoneMetadata struct {
	DataSource  string    `json:"dataSource"`
	LastUpdated time.Time `json:"lastUpdated"`
	Accuracy    string    `json:"accuracy"`
}

// ParkingZone is one geographic parking-rule zone: a boundary polygon plus
// the regulations enforced inside it. The caching layers treat zone
// collections as opaque, immutable values and only ever inspect their length;
// the contents matter to data sources and to the apps consuming them.
type ParkingZone struct {
	ID               string       `json:"id"`
	CityCode         CityID       `json:"cityCode"`
	DisplayName      string       `json:"displayName"`
	ZoneType         string       `json:"zoneType"`
	PermitArea       string       `json:"permitArea,omitempty"`
	ValidPermitAreas []string     `json:"validPermitAreas,omitempty"`
	RequiresPermit   bool         `json:"requiresPermit"`
	Restrictiveness  int          `json:"restrictiveness"`
	Boundary         []Coordinate `json:"boundary"`
	Rules            []ZoneRule   `json:"rules"`
	Metadata         ZoneMetadata `json:"metadata"`
}

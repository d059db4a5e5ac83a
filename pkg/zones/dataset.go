package zones

import "time"

// Bounds is a city's bounding box in WGS84 degrees.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// CityInfo describes the city a dataset covers.
type CityInfo struct {
	Code   CityID `json:"code"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Bounds Bounds `json:"bounds"`
}

// PermitArea is one residential permit area within a city.
type PermitArea struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Neighborhoods []string `json:"neighborhoods"`
}

// Dataset is the per-city bundle the data pipeline publishes: the full zone
// collection plus the city and permit-area context the apps render. Version
// is the pipeline's date stamp (YYYYMMDD), unrelated to any cache format
// version.
type Dataset struct {
	Version     string        `json:"version"`
	GeneratedAt time.Time     `json:"generatedAt"`
	City        CityInfo      `json:"city"`
	PermitAreas []PermitArea  `json:"permitAreas"`
	Zones       []ParkingZone `json:"zones"`
}

// Manifest indexes the datasets a publisher currently serves. Consumers read
// it to discover the current data version without downloading a dataset.
type Manifest struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	Cities      []CityID  `json:"cities"`
}

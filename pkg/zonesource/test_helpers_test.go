package zonesource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/storage"

	"github.com/parkscout/go-zones/pkg/zones"
)

// --- In-memory GCS fakes ---

// fakeGCSWriter buffers writes and commits the object to its bucket on Close,
// matching the visibility semantics of the real client.
type fakeGCSWriter struct {
	name   string
	bucket *fakeGCSBucket
	buf    bytes.Buffer
	closed bool
}

func (w *fakeGCSWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write on closed writer")
	}
	return w.buf.Write(p)
}

func (w *fakeGCSWriter) Close() error {
	if w.closed {
		return errors.New("already closed")
	}
	w.closed = true
	w.bucket.mu.Lock()
	defer w.bucket.mu.Unlock()
	w.bucket.objects[w.name] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}

type fakeGCSObject struct {
	name   string
	bucket *fakeGCSBucket
}

func (o *fakeGCSObject) NewReader(_ context.Context) (GCSReader, error) {
	o.bucket.mu.Lock()
	defer o.bucket.mu.Unlock()
	data, ok := o.bucket.objects[o.name]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *fakeGCSObject) NewWriter(_ context.Context) GCSWriter {
	return &fakeGCSWriter{name: o.name, bucket: o.bucket}
}

// fakeGCSBucket stores committed objects by name.
type fakeGCSBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *fakeGCSBucket) Object(name string) GCSObjectHandle {
	return &fakeGCSObject{name: name, bucket: b}
}

func (b *fakeGCSBucket) put(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = data
}

func (b *fakeGCSBucket) has(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[name]
	return ok
}

// fakeGCSClient serves one in-memory bucket regardless of the name asked for.
type fakeGCSClient struct {
	bucket *fakeGCSBucket
}

func newFakeGCSClient() *fakeGCSClient {
	return &fakeGCSClient{bucket: &fakeGCSBucket{objects: make(map[string][]byte)}}
}

func (c *fakeGCSClient) Bucket(_ string) GCSBucketHandle {
	return c.bucket
}

// --- Fixtures ---

// testDataset builds a small pipeline-shaped dataset for city.
func testDataset(city zones.CityID, version string, zoneCount int) zones.Dataset {
	ds := zones.Dataset{
		Version:     version,
		GeneratedAt: time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC),
		City: zones.CityInfo{
			Code:   city,
			Name:   "Test City",
			State:  "CA",
			Bounds: zones.Bounds{North: 37.83, South: 37.70, East: -122.35, West: -122.52},
		},
		PermitAreas: []zones.PermitArea{
			{Code: "A", Name: "Area A", Neighborhoods: []string{"Downtown"}},
		},
	}
	for i := 1; i <= zoneCount; i++ {
		ds.Zones = append(ds.Zones, zones.ParkingZone{
			ID:              city.String() + "_rpp_a_" + string(rune('0'+i)),
			CityCode:        city,
			DisplayName:     "RPP Area A",
			ZoneType:        "rpp",
			PermitArea:      "A",
			RequiresPermit:  true,
			Restrictiveness: 3,
			Boundary: []zones.Coordinate{
				{Latitude: 37.80, Longitude: -122.41},
				{Latitude: 37.80, Longitude: -122.40},
				{Latitude: 37.81, Longitude: -122.405},
			},
			Rules: []zones.ZoneRule{
				{
					ID:               city.String() + "_r1",
					RuleType:         "permit",
					Description:      "2 hour limit except permit holders",
					EnforcementDays:  []string{"mon", "tue", "wed", "thu", "fri"},
					EnforcementStart: zones.TimeOfDay{Hour: 8},
					EnforcementEnd:   zones.TimeOfDay{Hour: 18},
					TimeLimitMinutes: 120,
				},
			},
			Metadata: zones.ZoneMetadata{
				DataSource:  "test",
				LastUpdated: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Accuracy:    "high",
			},
		})
	}
	return ds
}

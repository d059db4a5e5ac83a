package zonecache

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parkscout/go-zones/pkg/zones"
)

// SchemaVersion identifies the on-disk encoding of persisted zone
// collections. Bump it whenever the persisted shape changes; durable tiers
// delete entries stamped with any other version on load rather than trying
// to migrate them.
const SchemaVersion = "1.3"

// CacheMetadata is the sidecar record a durable tier stores next to each
// persisted collection. A payload is only usable when its metadata decodes,
// carries the current SchemaVersion, and agrees with the payload's zone
// count.
type CacheMetadata struct {
	Version   string    `json:"version"`
	SavedAt   time.Time `json:"savedAt"`
	ZoneCount int       `json:"zoneCount"`
}

// encodeZonePayload renders zs as gzip-compressed JSON. Boundary polygons
// dominate the payload and compress well.
func encodeZonePayload(zs []zones.ParkingZone) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(zs); err != nil {
		return nil, fmt.Errorf("failed to encode zone payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zone payload: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeZonePayload reverses encodeZonePayload. Any structural damage, a
// truncated gzip stream or malformed JSON, surfaces as an error so the caller
// can purge the entry.
func decodeZonePayload(data []byte) ([]zones.ParkingZone, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open zone payload: %w", err)
	}
	defer gz.Close()

	var zs []zones.ParkingZone
	if err := json.NewDecoder(gz).Decode(&zs); err != nil {
		return nil, fmt.Errorf("failed to decode zone payload: %w", err)
	}
	return zs, nil
}

// encodeMetadata renders meta as plain JSON. Metadata stays uncompressed so
// the version check never depends on the payload codec.
func encodeMetadata(meta CacheMetadata) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (CacheMetadata, error) {
	var meta CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return CacheMetadata{}, fmt.Errorf("failed to decode cache metadata: %w", err)
	}
	return meta, nil
}

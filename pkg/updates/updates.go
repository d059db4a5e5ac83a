// Package updates carries dataset-update announcements from the data pipeline
// to the processes serving zones. When a new dataset ships, the pipeline
// publishes one DatasetUpdate event per city; listeners refresh their zone
// repository so caches pick up the new data without waiting for TTL expiry.
package updates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parkscout/go-zones/pkg/zones"
)

// Broker attribute keys set on every published event, so consumers can route
// or filter without decoding the payload.
const (
	AttrCityCode = "cityCode"
	AttrVersion  = "version"
)

// DatasetUpdate announces that a new dataset version is published for one
// city. Version is the pipeline's date stamp, the same value the sources
// report through DataVersion.
type DatasetUpdate struct {
	ID          string       `json:"id"`
	CityCode    zones.CityID `json:"cityCode"`
	Version     string       `json:"version"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// NewDatasetUpdate stamps a fresh event with a unique ID.
func NewDatasetUpdate(city zones.CityID, version string, generatedAt time.Time) DatasetUpdate {
	return DatasetUpdate{
		ID:          uuid.NewString(),
		CityCode:    city,
		Version:     version,
		GeneratedAt: generatedAt,
	}
}

func encodeUpdate(update DatasetUpdate) ([]byte, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset update: %w", err)
	}
	return data, nil
}

func decodeUpdate(payload []byte) (DatasetUpdate, error) {
	var update DatasetUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return DatasetUpdate{}, fmt.Errorf("failed to decode dataset update: %w", err)
	}
	if update.CityCode == "" {
		return DatasetUpdate{}, fmt.Errorf("dataset update %q has no city code", update.ID)
	}
	return update, nil
}

// UpdateMessage is one event as delivered by a broker: the raw payload plus
// the acknowledgment handles the broker gave us.
type UpdateMessage struct {
	// ID is the broker's identifier for the delivery, not the event ID.
	ID string

	// Payload is the encoded DatasetUpdate.
	Payload []byte

	// PublishTime is when the broker accepted the event.
	PublishTime time.Time

	// Attributes holds the broker metadata, including AttrCityCode and
	// AttrVersion for events produced by this package.
	Attributes map[string]string

	// Ack marks the delivery processed; the broker will not redeliver it.
	Ack func()

	// Nack returns the delivery for redelivery or dead-lettering.
	Nack func()
}

// Consumer is a source of update deliveries. Implementations fetch events
// from a broker and hand them to the listener's workers.
type Consumer interface {
	// Updates returns the channel deliveries arrive on. It is closed once the
	// consumer has fully stopped.
	Updates() <-chan UpdateMessage

	// Start begins delivering messages. The context bounds the consumption
	// lifetime; cancelling it stops delivery.
	Start(ctx context.Context) error

	// Stop halts delivery and waits for background work to finish, up to the
	// context deadline.
	Stop(ctx context.Context) error

	// Done is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

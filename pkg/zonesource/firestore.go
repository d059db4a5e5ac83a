package zonesource

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/parkscout/go-zones/pkg/zones"
)

const (
	// DefaultDatasetCollection holds one document per city, keyed by city code.
	DefaultDatasetCollection = "zone-datasets"
	// DefaultManifestCollection holds the single manifest document.
	DefaultManifestCollection = "zone-meta"

	manifestDocID = "manifest"
)

// FirestoreSourceConfig configures a Firestore dataset source. Zero values
// select the default collection names.
type FirestoreSourceConfig struct {
	DatasetCollection  string
	ManifestCollection string
}

// FirestoreSource reads datasets the pipeline publishes as Firestore
// documents, one per city. Firestore documents cap at 1 MiB, so this source
// suits small and mid-sized city exports; full metro datasets go through the
// GCS source instead.
type FirestoreSource struct {
	client *firestore.Client
	cfg    FirestoreSourceConfig
	logger zerolog.Logger
}

var _ ZoneSource = (*FirestoreSource)(nil)

// NewFirestoreSource creates a source over an existing client. The client's
// lifecycle is managed by the caller.
func NewFirestoreSource(cfg FirestoreSourceConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreSource, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	if cfg.DatasetCollection == "" {
		cfg.DatasetCollection = DefaultDatasetCollection
	}
	if cfg.ManifestCollection == "" {
		cfg.ManifestCollection = DefaultManifestCollection
	}
	return &FirestoreSource{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "FirestoreSource").Logger(),
	}, nil
}

// LoadZones fetches the city's dataset document.
func (s *FirestoreSource) LoadZones(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, error) {
	docRef := s.client.Collection(s.cfg.DatasetCollection).Doc(city.String())
	snap, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("no dataset document for city %q: %w", city, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get dataset document for city %q: %w", city, err)
	}

	var dataset zones.Dataset
	if err := snap.DataTo(&dataset); err != nil {
		return nil, fmt.Errorf("failed to map dataset document for city %q: %w", city, err)
	}

	s.logger.Debug().
		Str("city", city.String()).
		Str("version", dataset.Version).
		Int("zone_count", len(dataset.Zones)).
		Msg("Loaded dataset from Firestore.")
	return dataset.Zones, nil
}

// DataVersion reads the manifest document and reports the published version.
func (s *FirestoreSource) DataVersion(ctx context.Context) (string, error) {
	docRef := s.client.Collection(s.cfg.ManifestCollection).Doc(manifestDocID)
	snap, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("no manifest document: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to get manifest document: %w", err)
	}

	var manifest zones.Manifest
	if err := snap.DataTo(&manifest); err != nil {
		return "", fmt.Errorf("failed to map manifest document: %w", err)
	}
	return manifest.Version, nil
}

// ListCities reports the cities with a published dataset document.
func (s *FirestoreSource) ListCities(ctx context.Context) ([]zones.CityID, error) {
	var cities []zones.CityID
	iter := s.client.Collection(s.cfg.DatasetCollection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list dataset documents: %w", err)
		}
		cities = append(cities, zones.CityID(doc.Ref.ID))
	}
	return cities, nil
}

// SaveDataset publishes ds as the city's dataset document. The document is
// replaced whole; Firestore writes are atomic per document.
func (s *FirestoreSource) SaveDataset(ctx context.Context, ds zones.Dataset) error {
	if ds.City.Code == "" {
		return errors.New("dataset has no city code")
	}
	_, err := s.client.Collection(s.cfg.DatasetCollection).Doc(ds.City.Code.String()).Set(ctx, ds)
	if err != nil {
		return fmt.Errorf("failed to write dataset document for city %q: %w", ds.City.Code, err)
	}

	s.logger.Info().
		Str("city", ds.City.Code.String()).
		Str("version", ds.Version).
		Int("zone_count", len(ds.Zones)).
		Msg("Published dataset to Firestore.")
	return nil
}

// SaveManifest publishes m as the manifest document.
func (s *FirestoreSource) SaveManifest(ctx context.Context, m zones.Manifest) error {
	_, err := s.client.Collection(s.cfg.ManifestCollection).Doc(manifestDocID).Set(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to write manifest document: %w", err)
	}

	s.logger.Info().Str("version", m.Version).Int("cities", len(m.Cities)).Msg("Published manifest to Firestore.")
	return nil
}

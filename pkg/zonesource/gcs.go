package zonesource

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/parkscout/go-zones/pkg/zones"
)

const manifestObjectName = "manifest.json"

// GCSSourceConfig configures a Cloud Storage dataset source.
type GCSSourceConfig struct {
	// BucketName is the bucket the pipeline publishes into. Required.
	BucketName string
	// Prefix is the object path the exports live under, e.g. "exports/v1".
	// Empty means the bucket root.
	Prefix string
}

// GCSSource reads the data pipeline's Cloud Storage exports: one gzipped
// JSON dataset per city at <prefix>/<city>.json.gz and a plain JSON manifest
// at <prefix>/manifest.json carrying the current data version. The same
// source doubles as the pipeline's publish side through WriteDataset and
// WriteManifest.
type GCSSource struct {
	client GCSClient
	cfg    GCSSourceConfig
	logger zerolog.Logger
}

var _ ZoneSource = (*GCSSource)(nil)

// NewGCSSource creates a source over an existing client. The client's
// lifecycle is managed by the caller.
func NewGCSSource(cfg GCSSourceConfig, client GCSClient, logger zerolog.Logger) (*GCSSource, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	return &GCSSource{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "GCSSource").Str("bucket", cfg.BucketName).Logger(),
	}, nil
}

func (s *GCSSource) datasetObject(city zones.CityID) string {
	return path.Join(s.cfg.Prefix, city.String()+".json.gz")
}

func (s *GCSSource) manifestObject() string {
	return path.Join(s.cfg.Prefix, manifestObjectName)
}

// LoadZones downloads and decodes the city's dataset export.
func (s *GCSSource) LoadZones(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, error) {
	object := s.datasetObject(city)
	reader, err := s.client.Bucket(s.cfg.BucketName).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("no dataset published for city %q: %w", city, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open dataset object %s: %w", object, err)
	}
	defer func() { _ = reader.Close() }()

	gz, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("dataset object %s is not a gzip stream: %w", object, err)
	}
	defer func() { _ = gz.Close() }()

	var dataset zones.Dataset
	if err := json.NewDecoder(gz).Decode(&dataset); err != nil {
		return nil, fmt.Errorf("failed to decode dataset object %s: %w", object, err)
	}

	s.logger.Debug().
		Str("city", city.String()).
		Str("version", dataset.Version).
		Int("zone_count", len(dataset.Zones)).
		Msg("Loaded dataset from GCS.")
	return dataset.Zones, nil
}

// DataVersion reads the manifest and reports the published version stamp.
func (s *GCSSource) DataVersion(ctx context.Context) (string, error) {
	object := s.manifestObject()
	reader, err := s.client.Bucket(s.cfg.BucketName).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("no manifest published at %s: %w", object, ErrNotFound)
		}
		return "", fmt.Errorf("failed to open manifest object %s: %w", object, err)
	}
	defer func() { _ = reader.Close() }()

	var manifest zones.Manifest
	if err := json.NewDecoder(reader).Decode(&manifest); err != nil {
		return "", fmt.Errorf("failed to decode manifest object %s: %w", object, err)
	}
	return manifest.Version, nil
}

// WriteDataset publishes ds as the current dataset for its city. GCS replaces
// the object atomically when the writer commits, so a concurrent reader sees
// either the previous dataset or this one, never a blend.
func (s *GCSSource) WriteDataset(ctx context.Context, ds zones.Dataset) error {
	if ds.City.Code == "" {
		return errors.New("dataset has no city code")
	}

	object := s.datasetObject(ds.City.Code)
	writer := s.client.Bucket(s.cfg.BucketName).Object(object).NewWriter(ctx)
	gz := gzip.NewWriter(writer)
	if err := json.NewEncoder(gz).Encode(ds); err != nil {
		_ = gz.Close()
		_ = writer.Close()
		return fmt.Errorf("failed to encode dataset for city %q: %w", ds.City.Code, err)
	}
	if err := gz.Close(); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to finalize dataset for city %q: %w", ds.City.Code, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to commit dataset object %s: %w", object, err)
	}

	s.logger.Info().
		Str("city", ds.City.Code.String()).
		Str("version", ds.Version).
		Int("zone_count", len(ds.Zones)).
		Msg("Published dataset to GCS.")
	return nil
}

// WriteManifest publishes m as the current manifest.
func (s *GCSSource) WriteManifest(ctx context.Context, m zones.Manifest) error {
	object := s.manifestObject()
	writer := s.client.Bucket(s.cfg.BucketName).Object(object).NewWriter(ctx)
	if err := json.NewEncoder(writer).Encode(m); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to commit manifest object %s: %w", object, err)
	}

	s.logger.Info().Str("version", m.Version).Int("cities", len(m.Cities)).Msg("Published manifest to GCS.")
	return nil
}

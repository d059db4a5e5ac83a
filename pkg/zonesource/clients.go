package zonesource

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// NewProductionFirestoreClient creates a Firestore client suitable for
// production environments. It uses Application Default Credentials unless a
// credentials file is provided.
func NewProductionFirestoreClient(ctx context.Context, projectID string, credentialsFile string, logger zerolog.Logger) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		logger.Info().Str("credentials_file", credentialsFile).Msg("Using specified credentials file for Firestore client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for Firestore client.")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to create Firestore client.")
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return client, nil
}

// NewProductionStorageClient creates a Cloud Storage client suitable for
// production environments. It uses Application Default Credentials unless a
// credentials file is provided.
func NewProductionStorageClient(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		logger.Info().Str("credentials_file", credentialsFile).Msg("Using specified credentials file for Storage client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for Storage client.")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Storage client.")
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return client, nil
}

package updates

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// PublisherConfig configures the Pub/Sub publisher.
type PublisherConfig struct {
	// TopicID names the topic dataset updates are announced on. Required.
	TopicID string
}

// Publisher announces dataset updates on a Pub/Sub topic. Events are
// published one at a time and confirmed before PublishUpdate returns; the
// pipeline publishes a handful of events per run, so there is nothing to
// batch.
type Publisher struct {
	topic  *pubsub.Topic
	logger zerolog.Logger
}

// NewPublisher creates a publisher for the configured topic. It verifies the
// topic exists before returning, respecting the context's deadline.
func NewPublisher(ctx context.Context, cfg PublisherConfig, client *pubsub.Client, logger zerolog.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil")
	}
	if cfg.TopicID == "" {
		return nil, errors.New("topic ID is required")
	}

	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	return &Publisher{
		topic:  topic,
		logger: logger.With().Str("component", "UpdatePublisher").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

// PublishUpdate announces update and waits for the broker to accept it, so a
// failed publish surfaces to the pipeline instead of vanishing into a log.
func (p *Publisher) PublishUpdate(ctx context.Context, update DatasetUpdate) error {
	payload, err := encodeUpdate(update)
	if err != nil {
		return err
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			AttrCityCode: update.CityCode.String(),
			AttrVersion:  update.Version,
		},
	})

	msgID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish dataset update for city %q: %w", update.CityCode, err)
	}

	p.logger.Info().
		Str("city", update.CityCode.String()).
		Str("version", update.Version).
		Str("published_msg_id", msgID).
		Msg("Dataset update published.")
	return nil
}

// Stop flushes any messages still queued in the client and releases the
// topic, respecting the context's timeout.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.topic == nil {
		return nil
	}

	// topic.Stop is blocking, so wrap it to respect the context deadline.
	stopDone := make(chan struct{})
	go func() {
		p.topic.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publisher stop interrupted: %w", ctx.Err())
	}
}

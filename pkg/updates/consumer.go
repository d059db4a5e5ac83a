package updates

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// PubsubConsumerConfig configures the Pub/Sub consumer.
type PubsubConsumerConfig struct {
	// SubscriptionID names the subscription deliveries are pulled from.
	// Required.
	SubscriptionID string
	// MaxOutstandingMessages bounds unacknowledged deliveries in flight.
	MaxOutstandingMessages int
	// NumGoroutines sets the receive parallelism of the underlying client.
	NumGoroutines int
}

// NewPubsubConsumerDefaults returns a config with sensible defaults for the
// given subscription. Update volume is one event per city per pipeline run,
// so the defaults stay small.
func NewPubsubConsumerDefaults(subscriptionID string) PubsubConsumerConfig {
	return PubsubConsumerConfig{
		SubscriptionID:         subscriptionID,
		MaxOutstandingMessages: 32,
		NumGoroutines:          2,
	}
}

// PubsubConsumer delivers dataset updates from a Pub/Sub subscription. The
// broker's Ack and Nack handles pass through untouched, so acknowledgment
// stays with whoever processes the delivery.
type PubsubConsumer struct {
	subscription  *pubsub.Subscription
	logger        zerolog.Logger
	outputChan    chan UpdateMessage
	stopOnce      sync.Once
	cancelReceive context.CancelFunc
	doneChan      chan struct{}
}

var _ Consumer = (*PubsubConsumer)(nil)

// NewPubsubConsumer creates a consumer over an existing client. It verifies
// the subscription exists before returning.
func NewPubsubConsumer(ctx context.Context, cfg PubsubConsumerConfig, client *pubsub.Client, logger zerolog.Logger) (*PubsubConsumer, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil")
	}
	if cfg.SubscriptionID == "" {
		return nil, errors.New("subscription ID is required")
	}
	if cfg.MaxOutstandingMessages <= 0 {
		cfg.MaxOutstandingMessages = 32
	}
	if cfg.NumGoroutines <= 0 {
		cfg.NumGoroutines = 2
	}

	sub := client.Subscription(cfg.SubscriptionID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for subscription %s: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub subscription %s does not exist", cfg.SubscriptionID)
	}
	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	return &PubsubConsumer{
		subscription: sub,
		logger:       logger.With().Str("component", "UpdateConsumer").Str("subscription_id", cfg.SubscriptionID).Logger(),
		outputChan:   make(chan UpdateMessage, cfg.MaxOutstandingMessages),
		doneChan:     make(chan struct{}),
	}, nil
}

// Updates returns the delivery channel. It is closed once the consumer has
// fully stopped.
func (c *PubsubConsumer) Updates() <-chan UpdateMessage {
	return c.outputChan
}

// Start begins pulling deliveries in a background goroutine.
func (c *PubsubConsumer) Start(ctx context.Context) error {
	c.logger.Info().Msg("Starting update consumption.")
	receiveCtx, cancel := context.WithCancel(ctx)
	c.cancelReceive = cancel

	go func() {
		defer close(c.doneChan)
		defer close(c.outputChan)

		err := c.subscription.Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
			payloadCopy := make([]byte, len(msg.Data))
			copy(payloadCopy, msg.Data)

			delivery := UpdateMessage{
				ID:          msg.ID,
				Payload:     payloadCopy,
				PublishTime: msg.PublishTime,
				Attributes:  msg.Attributes,
				Ack:         msg.Ack,
				Nack:        msg.Nack,
			}

			select {
			case c.outputChan <- delivery:
			case <-receiveCtx.Done():
				msg.Nack()
				c.logger.Warn().Str("msg_id", msg.ID).Msg("Consumer stopping; Nacking delivery for redelivery.")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error().Err(err).Msg("Pub/Sub Receive exited with error.")
		}
		c.logger.Info().Msg("Update consumption stopped.")
	}()
	return nil
}

// Stop cancels the receive loop and waits for it to finish, up to the
// context deadline. Safe to call more than once.
func (c *PubsubConsumer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping update consumer.")
		if c.cancelReceive != nil {
			c.cancelReceive()
		}
	})

	select {
	case <-c.doneChan:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("consumer stop interrupted: %w", ctx.Err())
	}
}

// Done is closed when the receive loop has exited.
func (c *PubsubConsumer) Done() <-chan struct{} {
	return c.doneChan
}

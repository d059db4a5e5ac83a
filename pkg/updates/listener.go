package updates

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/parkscout/go-zones/pkg/zones"
)

// ZoneRefresher reloads one city from its data source, bypassing any cached
// entry. zonerepo.Repository satisfies it.
type ZoneRefresher interface {
	RefreshZones(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, error)
}

// ListenerConfig configures the update listener.
type ListenerConfig struct {
	// NumWorkers sets how many deliveries are processed concurrently.
	// Defaults to 2; updates arrive city by city, so a small pool suffices.
	NumWorkers int
}

// Listener consumes dataset-update deliveries and refreshes the repository
// for each announced city. A delivery is Acked once the refresh succeeds and
// Nacked when it fails, so the broker redelivers until the new dataset is
// actually being served.
type Listener struct {
	numWorkers int
	consumer   Consumer
	refresher  ZoneRefresher
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

// NewListener wires a consumer to a refresher.
func NewListener(cfg ListenerConfig, consumer Consumer, refresher ZoneRefresher, logger zerolog.Logger) (*Listener, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 2
	}
	if consumer == nil {
		return nil, errors.New("consumer cannot be nil")
	}
	if refresher == nil {
		return nil, errors.New("refresher cannot be nil")
	}

	return &Listener{
		numWorkers: cfg.NumWorkers,
		consumer:   consumer,
		refresher:  refresher,
		logger:     logger.With().Str("component", "UpdateListener").Logger(),
	}, nil
}

// Start begins consuming and spawns the worker pool.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info().Msg("Starting update listener.")

	if err := l.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start update consumer: %w", err)
	}

	l.wg.Add(l.numWorkers)
	for i := 0; i < l.numWorkers; i++ {
		go l.worker(ctx)
	}

	l.logger.Info().Int("worker_count", l.numWorkers).Msg("Update listener started.")
	return nil
}

// Stop halts consumption and waits for in-flight refreshes to finish, up to
// the context deadline.
func (l *Listener) Stop(ctx context.Context) error {
	l.logger.Info().Msg("Stopping update listener.")

	if err := l.consumer.Stop(ctx); err != nil {
		l.logger.Warn().Err(err).Msg("Error stopping consumer; continuing shutdown.")
	}

	workersDone := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
		l.logger.Info().Msg("Update listener stopped.")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for update workers: %w", ctx.Err())
	}
}

func (l *Listener) worker(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-l.consumer.Updates():
			if !ok {
				return
			}
			l.handle(ctx, msg)
		}
	}
}

// handle processes one delivery: decode, refresh, acknowledge.
func (l *Listener) handle(ctx context.Context, msg UpdateMessage) {
	update, err := decodeUpdate(msg.Payload)
	if err != nil {
		l.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Undecodable update delivery; Nacking for dead-lettering.")
		msg.Nack()
		return
	}

	if _, err := l.refresher.RefreshZones(ctx, update.CityCode); err != nil {
		l.logger.Error().Err(err).
			Str("city", update.CityCode.String()).
			Str("version", update.Version).
			Msg("Failed to refresh zones for update; Nacking for redelivery.")
		msg.Nack()
		return
	}

	l.logger.Info().
		Str("city", update.CityCode.String()).
		Str("version", update.Version).
		Msg("Zones refreshed for dataset update.")
	msg.Ack()
}

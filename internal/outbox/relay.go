// Package outbox relays events committed alongside bookings to their
// downstream sinks (calendar job queue, event stream).
package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"schedule-booking-api/internal/model"
)

// Sink receives each unpublished event. Publish must be idempotent: an event
// is redelivered to every sink when any sink fails.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt model.OutboxEvent) error
}

// Source is implemented by *store.Store.
type Source interface {
	DrainOutbox(ctx context.Context, limit int, handle func(context.Context, model.OutboxEvent) error) (int, error)
}

type Config struct {
	PollEvery time.Duration
	BatchSize int
}

type Relay struct {
	src       Source
	sinks     []Sink
	pollEvery time.Duration
	batchSize int
	log       *zap.Logger
}

func NewRelay(src Source, cfg Config, log *zap.Logger, sinks ...Sink) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Relay{
		src:       src,
		sinks:     sinks,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		log:       log,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	if len(r.sinks) == 0 {
		r.log.Warn("outbox relay disabled (no sinks configured)")
		return
	}
	names := make([]string, 0, len(r.sinks))
	for _, s := range r.sinks {
		names = append(names, s.Name())
	}
	r.log.Info("outbox relay started", zap.Strings("sinks", names), zap.Duration("poll_every", r.pollEvery))

	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("outbox publish failed", zap.Error(err))
			}
		}
	}
}

// Flush drains full batches until the table is empty or a sink fails.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.src.DrainOutbox(ctx, r.batchSize, r.dispatch)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.batchSize {
			return total, nil
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, evt model.OutboxEvent) error {
	for _, s := range r.sinks {
		if err := s.Publish(ctx, evt); err != nil {
			return fmt.Errorf("sink %s, event %s: %w", s.Name(), evt.EventID, err)
		}
	}
	r.log.Debug("outbox event published", zap.String("event_id", evt.EventID), zap.String("type", evt.EventType))
	return nil
}

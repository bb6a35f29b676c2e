package eventing

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink delivers envelopes to downstream consumers.
type Sink interface {
	Deliver(ctx context.Context, env Envelope) error
}

// OutboxStore provides access to outbox records.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxRecord represents a pending outbox entry.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
}

// Dispatcher relays pending outbox records to a sink.
type Dispatcher struct {
	outbox OutboxStore
	sink   Sink
	logger *zap.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(outbox OutboxStore, sink Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{outbox: outbox, sink: sink, logger: logger}
}

// Dispatch delivers up to limit pending records and returns how many were sent.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (int, error) {
	if d == nil || d.outbox == nil || d.sink == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, record := range records {
		if err := d.sink.Deliver(ctx, record.Envelope); err != nil {
			d.logger.Warn("outbox delivery failed",
				zap.String("outbox_id", record.ID),
				zap.String("event_type", record.Envelope.EventType),
				zap.Error(err),
			)
			_ = d.outbox.MarkFailed(ctx, record.ID)
			continue
		}
		_ = d.outbox.MarkSent(ctx, record.ID)
		sent++
	}
	return sent, nil
}

// Run dispatches on every tick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Dispatch(ctx, 0); err != nil {
				d.logger.Warn("outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

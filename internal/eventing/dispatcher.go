package eventing

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultDispatchBatch = 50

// Dispatcher delivers pending outbox records to a sink.
type Dispatcher struct {
	sink   Sink
	outbox OutboxStore
	logger *zap.Logger
}

// Sink receives dispatched envelopes.
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

// NewDispatcher constructs a dispatcher.
func NewDispatcher(sink Sink, outbox OutboxStore, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sink: sink, outbox: outbox, logger: logger}
}

// Dispatch pulls pending outbox messages and delivers them.
// A failed delivery marks the record failed and moves on to the next one.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) error {
	if d == nil || d.outbox == nil || d.sink == nil {
		return nil
	}
	if limit <= 0 {
		limit = defaultDispatchBatch
	}
	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		return err
	}

	for _, record := range records {
		env := record.Envelope
		if err := d.sink.Deliver(WithEnvelope(ctx, env), env); err != nil {
			d.logger.Warn("outbox delivery failed",
				zap.String("outbox_id", record.ID),
				zap.String("event_type", env.EventType),
				zap.String("event_id", env.EventID),
				zap.Error(err))
			if markErr := d.outbox.MarkFailed(ctx, record.ID); markErr != nil {
				d.logger.Error("outbox mark failed", zap.String("outbox_id", record.ID), zap.Error(markErr))
			}
			continue
		}
		if err := d.outbox.MarkSent(ctx, record.ID); err != nil {
			d.logger.Error("outbox mark sent", zap.String("outbox_id", record.ID), zap.Error(err))
		}
	}
	return nil
}

// Run dispatches on every tick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration, batch int) {
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
			if err := d.Dispatch(ctx, batch); err != nil {
				d.logger.Warn("outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

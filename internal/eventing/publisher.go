package eventing

import (
	"context"

	"go.uber.org/zap"
)

// Publisher writes events to outbox and triggers dispatch.
type Publisher struct {
	outbox   OutboxWriter
	dispatch *Dispatcher
	logger   *zap.Logger
}

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// NewPublisher constructs a publisher. dispatch may be nil, in which case
// records wait for the periodic dispatcher.
func NewPublisher(outbox OutboxWriter, dispatch *Dispatcher, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{outbox: outbox, dispatch: dispatch, logger: logger}
}

// Publish writes the event to outbox and triggers dispatch.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		return err
	}
	outboxID, err := p.outbox.Insert(ctx, env)
	if err != nil {
		return err
	}
	p.logger.Debug("event queued",
		zap.String("outbox_id", outboxID),
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID))
	if p.dispatch != nil {
		if err := p.dispatch.Dispatch(ctx, 1); err != nil {
			p.logger.Warn("inline dispatch failed", zap.Error(err))
		}
	}
	return nil
}

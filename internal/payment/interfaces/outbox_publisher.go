package interfaces

import (
	"context"

	"payment-gateway/internal/eventing"
	"payment-gateway/internal/payment/application"
)

// OutboxPublisher writes payment events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishPaymentApproved writes event to outbox.
func (p *OutboxPublisher) PublishPaymentApproved(ctx context.Context, event application.PaymentApproved) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, event)
}

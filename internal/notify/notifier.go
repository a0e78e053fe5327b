// Package notify delivers payment events to external listeners.
package notify

import (
	"context"

	"go.uber.org/zap"

	"payment-gateway/internal/eventing"
)

// LogNotifier writes delivered events to the log. It is the sink used when
// no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Deliver logs the envelope.
func (n *LogNotifier) Deliver(ctx context.Context, env eventing.Envelope) error {
	_ = ctx
	n.logger.Info("payment event",
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID),
		zap.Int64("partner_id", env.PartnerID),
		zap.ByteString("payload", env.Payload))
	return nil
}

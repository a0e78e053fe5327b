package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogLogger writes audit entries to a zap logger. It backs the in-memory mode
// where no database is configured.
type LogLogger struct {
	logger *zap.Logger
}

// NewLogLogger constructs a log-backed audit logger.
func NewLogLogger(logger *zap.Logger) *LogLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogLogger{logger: logger.Named("audit")}
}

// Log writes the entry as a structured log line.
func (l *LogLogger) Log(_ context.Context, entry Entry) error {
	entry = normalize(entry, time.Now())
	fields := []zap.Field{
		zap.String("audit_id", entry.ID),
		zap.String("actor", entry.Actor),
		zap.String("role", entry.Role),
		zap.String("action", entry.Action),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
		zap.String("payload_digest", entry.PayloadDigest),
		zap.String("ip", entry.IP),
		zap.String("user_agent", entry.UserAgent),
		zap.Time("created_at", entry.CreatedAt),
	}
	if entry.PartnerID != nil {
		fields = append(fields, zap.Int64("partner_id", *entry.PartnerID))
	}
	if len(entry.Metadata) > 0 {
		fields = append(fields, zap.ByteString("metadata", entry.Metadata))
	}
	l.logger.Info("audit", fields...)
	return nil
}

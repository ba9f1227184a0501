package verification

import (
	"context"
	"log/slog"
)

// LoggingDelivery logs that a verification message was queued. Used when no
// mail provider is configured. The raw token is never logged.
type LoggingDelivery struct {
	logger *slog.Logger
}

func NewLoggingDelivery(logger *slog.Logger) *LoggingDelivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingDelivery{logger: logger}
}

func (d *LoggingDelivery) Deliver(ctx context.Context, msg Message) error {
	d.logger.InfoContext(ctx, "verification email queued",
		"customer_id", msg.CustomerID.String(),
		"email", msg.Email,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}

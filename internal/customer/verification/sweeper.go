package verification

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often expired tokens are purged.
const DefaultSweepInterval = 15 * time.Minute

// StartSweeper purges expired tokens every interval until ctx is cancelled.
// A failed sweep is logged and retried on the next tick.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.ErrorContext(ctx, "token sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

package dispatch

import (
	"context"
	"log/slog"
	"time"
)

// Recoverer releases expired worker locks on one channel so stalled jobs
// return to the queue. RedisStorage implements it; MemoryStorage runs its
// own lock expiration manager and needs no external sweep.
type Recoverer interface {
	RecoverExpired(ctx context.Context, channel Channel) (int, error)
}

// RecoverLoop sweeps expired locks on every given channel until the context
// is canceled. Run it alongside the channel workers whenever the job storage
// relies on an external sweep for stall recovery (RedisStorage). The
// returned function is suitable for errgroup and returns nil on graceful
// shutdown.
func RecoverLoop(ctx context.Context, rec Recoverer, interval time.Duration, logger *slog.Logger, channels ...Channel) func() error {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, channel := range channels {
					recovered, err := rec.RecoverExpired(ctx, channel)
					if err != nil {
						logger.ErrorContext(ctx, "stall recovery sweep failed",
							slog.String("channel", string(channel)),
							slog.String("error", err.Error()))
						continue
					}
					if recovered > 0 {
						logger.InfoContext(ctx, "recovered stalled jobs",
							slog.String("channel", string(channel)),
							slog.Int("recovered", recovered))
					}
				}
			}
		}
	}
}

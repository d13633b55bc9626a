package deliverylog

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultRetention     = 90 * 24 * time.Hour
	defaultSweepInterval = time.Hour
)

// Janitor periodically removes terminal entries older than the retention
// window. Pending and sent entries are never removed so in-flight
// notifications keep their audit trail.
type Janitor struct {
	storage  Storage
	logger   *slog.Logger
	retain   time.Duration
	interval time.Duration
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithRetention overrides the default 90 day retention window.
func WithRetention(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.retain = d
		}
	}
}

// WithSweepInterval overrides how often the janitor runs.
func WithSweepInterval(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.interval = d
		}
	}
}

// WithJanitorLogger sets the logger used by the janitor.
func WithJanitorLogger(logger *slog.Logger) JanitorOption {
	return func(j *Janitor) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// NewJanitor creates a retention janitor for the given storage.
func NewJanitor(storage Storage, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		storage:  storage,
		logger:   slog.Default(),
		retain:   defaultRetention,
		interval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start runs the sweep loop until the context is canceled. It sweeps once
// immediately, then on every interval tick. Cancellation is the normal way
// to stop the janitor, so it returns nil rather than the context error.
func (j *Janitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("delivery log janitor shutting down")
			return nil
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// Run returns a function suitable for errgroup.
func (j *Janitor) Run(ctx context.Context) func() error {
	return func() error {
		return j.Start(ctx)
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.retain)

	removed, err := j.storage.Cleanup(ctx, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "delivery log cleanup failed",
			slog.String("error", err.Error()))
		return
	}

	if removed > 0 {
		j.logger.InfoContext(ctx, "delivery log cleanup completed",
			slog.Int("removed", removed),
			slog.Time("cutoff", cutoff))
	}
}

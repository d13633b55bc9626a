package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ridekit/pkg/deliverylog"
)

// Worker pulls jobs for a single channel and delivers them through a Sender.
// Run one worker per channel so a slow or failing provider never starves the
// other channels.
type Worker struct {
	storage  Storage
	sender   Sender
	log      deliverylog.Storage
	channel  Channel
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopMu   sync.Mutex

	pullInterval time.Duration
	lockTimeout  time.Duration
	sendTimeout  time.Duration
	retryBackoff time.Duration
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

type workerOptions struct {
	pullInterval       time.Duration
	lockTimeout        time.Duration
	sendTimeout        time.Duration
	retryBackoff       time.Duration
	maxConcurrentSends int
	logger             *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

// WithPullInterval sets how often the worker polls for due jobs.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets how long a claimed job stays locked before stall
// recovery may requeue it. Must exceed the send timeout.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithSendTimeout bounds a single adapter invocation.
func WithSendTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithRetryBackoff sets the base backoff doubled on every failed attempt.
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.retryBackoff = d
		}
	}
}

// WithMaxConcurrentSends sets the number of in-flight sends the worker runs.
func WithMaxConcurrentSends(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentSends = n
		}
	}
}

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewWorker creates a delivery worker for one channel.
func NewWorker(storage Storage, channel Channel, sender Sender, log deliverylog.Storage, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}
	if log == nil {
		return nil, fmt.Errorf("delivery log storage cannot be nil")
	}

	options := &workerOptions{
		pullInterval:       time.Second,
		lockTimeout:        time.Minute,
		sendTimeout:        15 * time.Second,
		retryBackoff:       2 * time.Second,
		maxConcurrentSends: 1,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		storage:      storage,
		sender:       sender,
		log:          log,
		channel:      channel,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentSends),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		sendTimeout:  options.sendTimeout,
		retryBackoff: options.retryBackoff,
		logger:       options.logger,
	}, nil
}

// Start begins pulling and delivering jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("dispatch worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.String("channel", string(w.channel)),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight sends.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("dispatch worker stopped",
		slog.String("worker_id", w.workerID.String()),
		slog.String("channel", string(w.channel)))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// stopMu keeps the WaitGroup add ordered against Stop.
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndDeliver(); err != nil {
						w.logger.Error("failed to process job",
							slog.String("worker_id", w.workerID.String()),
							slog.String("channel", string(w.channel)),
							slog.String("error", err.Error()))
					}
				}()
			default:
				w.logger.Debug("all send slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()),
					slog.String("channel", string(w.channel)))
			}
		}
	}
}

func (w *Worker) pullAndDeliver() error {
	job, err := w.storage.ClaimJob(w.ctx, w.workerID, w.channel, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return nil
	}

	w.logger.Debug("claimed job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("notification_id", job.NotificationID.String()),
		slog.String("channel", string(job.Channel)))

	return w.deliver(job)
}

func (w *Worker) deliver(job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in sender: %v", r)
			w.logger.Error("sender panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("job_id", job.ID.String()),
				slog.Any("panic", r))
			_ = w.handleFailure(job, retErr)
		}
	}()

	payload, err := DecodePayload(job.Payload)
	if err != nil {
		// Undecodable payloads can never succeed; fail terminally.
		return w.failTerminally(job, err)
	}

	// The send context is detached from the worker lifecycle so graceful
	// shutdown lets in-flight sends finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.sendTimeout)
	defer cancel()

	result, err := w.sender.Send(ctx, payload)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error("delivery attempt failed",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("channel", string(job.Channel)),
			slog.Int("attempt", int(job.AttemptCount)+1),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))

		if !isRetryable(err) {
			return w.failTerminally(job, err)
		}
		return w.handleFailure(job, err)
	}

	return w.handleSuccess(job, result, duration)
}

// settleTimeout bounds the storage and log writes that settle a finished
// attempt. They run on a detached context: a send finishing during graceful
// Stop (w.ctx already canceled) must still be recorded, or the job stays
// stranded in-flight.
const settleTimeout = 5 * time.Second

func (w *Worker) handleSuccess(job *Job, result SendResult, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := w.storage.CompleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s succeeded: %w", job.ID, err)
	}

	now := time.Now()
	if err := w.log.MarkSent(ctx, job.NotificationID, string(job.Channel), now); err != nil {
		w.logger.Error("failed to record sent in delivery log",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
	}
	if result.Delivered {
		if err := w.log.MarkDelivered(ctx, job.NotificationID, string(job.Channel), now); err != nil {
			w.logger.Error("failed to record delivered in delivery log",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	w.logger.Info("notification delivered",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("notification_id", job.NotificationID.String()),
		slog.String("channel", string(job.Channel)),
		slog.String("provider_message_id", result.ProviderMessageID),
		slog.Duration("duration", duration))

	return nil
}

// handleFailure records a retryable failure. The backoff doubles with every
// attempt: base, 2x base, 4x base.
func (w *Worker) handleFailure(job *Job, execErr error) error {
	backoff := w.retryBackoff << job.AttemptCount
	nextAttemptAt := time.Now().Add(backoff)

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	updated, err := w.storage.FailJob(ctx, job.ID, execErr.Error(), nextAttemptAt)
	if err != nil {
		return fmt.Errorf("failed to record failed attempt for job %s: %w", job.ID, err)
	}

	if updated.Status == JobStatusFailed {
		if err := w.log.MarkFailed(ctx, job.NotificationID, string(job.Channel), execErr.Error(), time.Now()); err != nil {
			w.logger.Error("failed to record failure in delivery log",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
		}

		w.logger.Warn("job failed after exhausting attempts",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("channel", string(job.Channel)),
			slog.Int("attempts", int(updated.AttemptCount)))
		return nil
	}

	w.logger.Info("job scheduled for retry",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.Int("attempt", int(updated.AttemptCount)),
		slog.Duration("backoff", backoff))

	return nil
}

// failTerminally marks the job failed without further retries. Used for
// non-retryable provider errors and undecodable payloads.
func (w *Worker) failTerminally(job *Job, execErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := w.storage.MarkFailed(ctx, job.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", job.ID, err)
	}

	if err := w.log.MarkFailed(ctx, job.NotificationID, string(job.Channel), execErr.Error(), time.Now()); err != nil {
		w.logger.Error("failed to record failure in delivery log",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
	}

	w.logger.Warn("job failed permanently",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("channel", string(job.Channel)),
		slog.String("error", execErr.Error()))

	return nil
}

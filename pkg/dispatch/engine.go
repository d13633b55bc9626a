package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ridekit/pkg/deliverylog"
	"github.com/dmitrymomot/ridekit/pkg/prefs"
)

// Request describes one notification to fan out across channels. Each
// payload targets its own channel; the engine creates at most one job per
// channel after preference gating.
type Request struct {
	NotificationID uuid.UUID
	UserID         string
	Category       string
	Priority       Priority
	Payloads       []Payload
}

// Receipt reports what the engine did with each requested channel.
type Receipt struct {
	NotificationID uuid.UUID
	JobIDs         map[Channel]uuid.UUID
	Suppressed     map[Channel]SuppressReason
	// ScheduledAt is set when quiet hours (or an explicit schedule) deferred
	// the jobs to a future time.
	ScheduledAt *time.Time
}

// BulkOutcome classifies the result of one user's dispatch in a bulk send.
type BulkOutcome string

const (
	BulkOutcomeSent       BulkOutcome = "sent"
	BulkOutcomeScheduled  BulkOutcome = "scheduled"
	BulkOutcomeSuppressed BulkOutcome = "suppressed"
	BulkOutcomeError      BulkOutcome = "error"
)

// BulkResult is the per-user outcome of DispatchBulk.
type BulkResult struct {
	UserID  string
	Outcome BulkOutcome
	Receipt Receipt
	Err     error
}

// Engine gates notifications against user delivery preferences and enqueues
// one job per enabled channel.
type Engine struct {
	storage     Storage
	resolver    prefs.Resolver
	log         deliverylog.Storage
	logger      *slog.Logger
	maxAttempts int8
	now         func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used by the engine.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxAttempts overrides the default attempt budget stamped on new jobs.
func WithMaxAttempts(n int8) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// NewEngine creates a dispatch engine.
func NewEngine(storage Storage, resolver prefs.Resolver, log deliverylog.Storage, opts ...EngineOption) (*Engine, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if resolver == nil {
		return nil, ErrResolverNil
	}
	if log == nil {
		return nil, fmt.Errorf("delivery log storage cannot be nil")
	}

	e := &Engine{
		storage:     storage,
		resolver:    resolver,
		log:         log,
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dispatch gates the request against the user's preferences and enqueues one
// job per enabled channel for immediate delivery. Gating order: a disabled
// category suppresses everything; quiet hours defer non-urgent jobs to the
// window end; individually disabled channels are suppressed one by one.
func (e *Engine) Dispatch(ctx context.Context, req Request) (Receipt, error) {
	return e.dispatch(ctx, req, e.now())
}

// Schedule enqueues the request for delivery at a future time. The scheduled
// time must be strictly in the future; quiet-hours deferral still applies if
// the user's window pushes delivery even later.
func (e *Engine) Schedule(ctx context.Context, req Request, at time.Time) (Receipt, error) {
	if !at.After(e.now()) {
		return Receipt{}, ErrInvalidSchedule
	}
	return e.dispatch(ctx, req, at)
}

// DispatchBulk sends the same content to many users with per-user isolation:
// one user's resolver or storage failure never aborts the rest.
func (e *Engine) DispatchBulk(ctx context.Context, userIDs []string, req Request) []BulkResult {
	results := make([]BulkResult, 0, len(userIDs))

	for _, userID := range userIDs {
		userReq := req
		userReq.UserID = userID
		// Each user gets a distinct notification identity so delivery logs
		// and receipts stay per-user.
		userReq.NotificationID = uuid.New()

		receipt, err := e.Dispatch(ctx, userReq)
		result := BulkResult{UserID: userID, Receipt: receipt, Err: err}

		switch {
		case err != nil:
			result.Outcome = BulkOutcomeError
			e.logger.ErrorContext(ctx, "bulk dispatch failed for user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		case len(receipt.JobIDs) == 0:
			result.Outcome = BulkOutcomeSuppressed
		case receipt.ScheduledAt != nil:
			result.Outcome = BulkOutcomeScheduled
		default:
			result.Outcome = BulkOutcomeSent
		}

		results = append(results, result)
	}

	return results
}

// Cancel cancels a pending job that has not yet become due. The job's
// delivery log entry is closed out as failed with a cancellation note.
func (e *Engine) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := e.storage.CancelJob(ctx, jobID)
	if err != nil {
		return err
	}

	if err := e.log.MarkFailed(ctx, job.NotificationID, string(job.Channel), "canceled before delivery", e.now()); err != nil {
		e.logger.ErrorContext(ctx, "failed to record cancellation in delivery log",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
	}

	e.logger.InfoContext(ctx, "job canceled",
		slog.String("job_id", jobID.String()),
		slog.String("channel", string(job.Channel)))

	return nil
}

func (e *Engine) dispatch(ctx context.Context, req Request, at time.Time) (Receipt, error) {
	if err := validateRequest(req); err != nil {
		return Receipt{}, err
	}

	pref, err := e.resolver.Resolve(ctx, req.UserID)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to resolve preferences for user %s: %w", req.UserID, err)
	}

	receipt := Receipt{
		NotificationID: req.NotificationID,
		JobIDs:         make(map[Channel]uuid.UUID),
		Suppressed:     make(map[Channel]SuppressReason),
	}

	if !pref.CategoryEnabled(req.Category) {
		for _, p := range req.Payloads {
			receipt.Suppressed[p.Channel()] = SuppressCategoryDisabled
		}
		e.logger.InfoContext(ctx, "notification suppressed by category preference",
			slog.String("notification_id", req.NotificationID.String()),
			slog.String("user_id", req.UserID),
			slog.String("category", req.Category))
		return receipt, nil
	}

	// Quiet-hours deferral is computed once at submission. Retries later keep
	// their backoff schedule even if they land inside the window.
	nextAttemptAt := at
	if req.Priority != PriorityUrgent && pref.InQuietHours(at) {
		if end, err := pref.QuietHoursEnd(at); err == nil && end.After(nextAttemptAt) {
			nextAttemptAt = end
		}
	}
	if nextAttemptAt.After(e.now()) {
		receipt.ScheduledAt = &nextAttemptAt
	}

	for _, payload := range req.Payloads {
		channel := payload.Channel()

		if !pref.ChannelEnabled(string(channel)) {
			receipt.Suppressed[channel] = SuppressChannelDisabled
			continue
		}

		encoded, err := EncodePayload(payload)
		if err != nil {
			return receipt, fmt.Errorf("channel %s: %w", channel, err)
		}

		job := &Job{
			ID:             uuid.New(),
			NotificationID: req.NotificationID,
			UserID:         req.UserID,
			Channel:        channel,
			Payload:        encoded,
			Category:       req.Category,
			Priority:       req.Priority,
			Status:         JobStatusPending,
			MaxAttempts:    e.maxAttempts,
			NextAttemptAt:  nextAttemptAt,
			CreatedAt:      e.now(),
		}

		if err := e.storage.CreateJob(ctx, job); err != nil {
			return receipt, fmt.Errorf("failed to enqueue job on channel %s: %w", channel, err)
		}

		if err := e.log.Create(ctx, deliverylog.Entry{
			NotificationID: req.NotificationID,
			Channel:        string(channel),
			Category:       req.Category,
			CreatedAt:      job.CreatedAt,
		}); err != nil {
			e.logger.ErrorContext(ctx, "failed to create delivery log entry",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
		}

		receipt.JobIDs[channel] = job.ID
	}

	e.logger.InfoContext(ctx, "notification dispatched",
		slog.String("notification_id", req.NotificationID.String()),
		slog.String("user_id", req.UserID),
		slog.Int("jobs", len(receipt.JobIDs)),
		slog.Int("suppressed", len(receipt.Suppressed)))

	return receipt, nil
}

func validateRequest(req Request) error {
	if req.NotificationID == uuid.Nil {
		return fmt.Errorf("%w: notification id cannot be empty", ErrInvalidRequest)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: user id cannot be empty", ErrInvalidRequest)
	}
	if len(req.Payloads) == 0 {
		return ErrNoChannels
	}

	seen := make(map[Channel]struct{}, len(req.Payloads))
	for _, p := range req.Payloads {
		if p == nil {
			return ErrInvalidPayload
		}
		channel := p.Channel()
		if !channel.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
		}
		if _, dup := seen[channel]; dup {
			return fmt.Errorf("%w: duplicate channel %q", ErrInvalidChannel, channel)
		}
		seen[channel] = struct{}{}
		if err := p.Validate(); err != nil {
			return err
		}
	}

	return nil
}

package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists notification jobs and hands them to workers with
// dequeue-and-lock semantics.
type Storage interface {
	// CreateJob stores a new pending job.
	CreateJob(ctx context.Context, job *Job) error

	// ClaimJob atomically claims the next due pending job on the channel,
	// marks it in_flight and locks it for lockDuration. Returns
	// ErrNoJobToClaim when nothing is due.
	ClaimJob(ctx context.Context, workerID uuid.UUID, channel Channel, lockDuration time.Duration) (*Job, error)

	// CompleteJob marks a claimed job succeeded and releases its lock.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// FailJob records a failed attempt: increments the attempt count, stores
	// the error, releases the lock and reschedules the job for nextAttemptAt.
	// The returned job reflects the updated attempt count so the caller can
	// decide whether attempts are exhausted.
	FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, nextAttemptAt time.Time) (*Job, error)

	// MarkFailed transitions a job to terminal failed with the given error.
	MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error

	// CancelJob cancels a pending job whose next attempt is still in the
	// future. Claimed, due, or terminal jobs return ErrJobNotCancellable.
	// The returned job reflects the canceled state.
	CancelJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// GetJob returns the job with the given id.
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)
}

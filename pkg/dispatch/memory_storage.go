package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage implementation with background lock
// expiration. Suitable for tests and single-process deployments.
type MemoryStorage struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job

	// Indexes for claim scans
	byChannel map[Channel][]uuid.UUID

	// Lock management
	lockTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemoryStorage creates a new in-memory job storage and starts its lock
// expiration manager.
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		jobs:      make(map[uuid.UUID]*Job),
		byChannel: make(map[Channel][]uuid.UUID),
		done:      make(chan struct{}),
	}

	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background lock expiration goroutine.
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	jobCopy := *job
	ms.jobs[job.ID] = &jobCopy
	ms.byChannel[job.Channel] = append(ms.byChannel[job.Channel], job.ID)

	return nil
}

func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, channel Channel, lockDuration time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Job

	// Urgent-first selection, earliest due time breaks ties.
	for _, jobID := range ms.byChannel[channel] {
		job := ms.jobs[jobID]

		if job.Status != JobStatusPending {
			continue
		}
		if job.NextAttemptAt.After(now) {
			continue
		}
		if job.LockedUntil != nil && job.LockedUntil.After(now) {
			continue
		}

		if best == nil ||
			(job.Priority == PriorityUrgent && best.Priority != PriorityUrgent) ||
			(job.Priority == best.Priority && job.NextAttemptAt.Before(best.NextAttemptAt)) {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = JobStatusInFlight
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	jobCopy := *best
	return &jobCopy, nil
}

func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}

	if job.Status != JobStatusInFlight {
		return fmt.Errorf("job %s is not in flight", jobID)
	}

	job.Status = JobStatusSucceeded
	job.LockedUntil = nil
	job.LockedBy = nil
	job.LastError = ""

	return nil
}

func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, nextAttemptAt time.Time) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}

	if job.Status != JobStatusInFlight {
		return nil, fmt.Errorf("job %s is not in flight", jobID)
	}

	job.AttemptCount++
	job.LastError = errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	if job.AttemptCount >= job.MaxAttempts {
		job.Status = JobStatusFailed
	} else {
		job.Status = JobStatusPending
		job.NextAttemptAt = nextAttemptAt
	}

	jobCopy := *job
	return &jobCopy, nil
}

func (ms *MemoryStorage) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}

	job.Status = JobStatusFailed
	job.LastError = errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	return nil
}

func (ms *MemoryStorage) CancelJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}

	// Only jobs still waiting for a future attempt can be canceled. Once a
	// worker may have claimed the job the outcome is no longer controllable.
	if job.Status != JobStatusPending || !job.NextAttemptAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: job %s status %s", ErrJobNotCancellable, jobID, job.Status)
	}

	job.Status = JobStatusCanceled

	jobCopy := *job
	return &jobCopy, nil
}

func (ms *MemoryStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}

	jobCopy := *job
	return &jobCopy, nil
}

// lockExpirationManager recovers jobs claimed by workers that died without
// releasing their lock.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

// expireLocks scans in-flight jobs and releases expired locks. A job is
// requeued on its first expiry; a second expiry counts as a failed attempt
// so a poisoned job cannot cycle through stalled workers forever.
func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, job := range ms.jobs {
		if job.Status != JobStatusInFlight {
			continue
		}
		if job.LockedUntil == nil || !job.LockedUntil.Before(now) {
			continue
		}

		job.LockedUntil = nil
		job.LockedBy = nil

		if !job.Requeued {
			job.Requeued = true
			job.Status = JobStatusPending
			job.NextAttemptAt = now
			continue
		}

		job.AttemptCount++
		job.LastError = "delivery attempt stalled: worker lock expired"
		if job.AttemptCount >= job.MaxAttempts {
			job.Status = JobStatusFailed
		} else {
			job.Status = JobStatusPending
			job.NextAttemptAt = now
		}
	}
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage is a Redis-backed Storage implementation for multi-process
// deployments. Jobs live as JSON values keyed by id; due jobs are indexed in
// per-channel sorted sets scored by next attempt time, claimed jobs in an
// in-flight sorted set scored by lock expiry.
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
}

// RedisStorageOption configures a RedisStorage.
type RedisStorageOption func(*RedisStorage)

// WithKeyPrefix overrides the default "dispatch" key prefix.
func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(rs *RedisStorage) {
		if prefix != "" {
			rs.keyPrefix = prefix
		}
	}
}

// NewRedisStorage creates a Redis-backed job storage.
func NewRedisStorage(client *redis.Client, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrStorageNil
	}

	rs := &RedisStorage{
		client:    client,
		keyPrefix: "dispatch",
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs, nil
}

// claimScript atomically pops the earliest due member from a ready set and
// parks it in the in-flight set with its lock expiry as score.
// KEYS[1] = ready set, KEYS[2] = in-flight set
// ARGV[1] = now (unix ms), ARGV[2] = lock expiry (unix ms)
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #due == 0 then
	return false
end
redis.call('ZREM', KEYS[1], due[1])
redis.call('ZADD', KEYS[2], ARGV[2], due[1])
return due[1]
`)

func (rs *RedisStorage) jobKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:job:%s", rs.keyPrefix, id)
}

func (rs *RedisStorage) readyKey(channel Channel, priority Priority) string {
	return fmt.Sprintf("%s:ready:%s:%s", rs.keyPrefix, channel, priority)
}

func (rs *RedisStorage) inflightKey(channel Channel) string {
	return fmt.Sprintf("%s:inflight:%s", rs.keyPrefix, channel)
}

func (rs *RedisStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.jobKey(job.ID), data, 0)
	pipe.ZAdd(ctx, rs.readyKey(job.Channel, job.Priority), redis.Z{
		Score:  float64(job.NextAttemptAt.UnixMilli()),
		Member: job.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}

	return nil
}

func (rs *RedisStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, channel Channel, lockDuration time.Duration) (*Job, error) {
	now := time.Now()
	lockUntil := now.Add(lockDuration)

	// Urgent jobs are claimed before normal ones regardless of due time.
	for _, priority := range []Priority{PriorityUrgent, PriorityNormal} {
		res, err := claimScript.Run(ctx, rs.client,
			[]string{rs.readyKey(channel, priority), rs.inflightKey(channel)},
			now.UnixMilli(), lockUntil.UnixMilli(),
		).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to claim job on channel %s: %w", channel, err)
		}

		idStr, ok := res.(string)
		if !ok {
			continue
		}

		jobID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid job id in ready set: %w", err)
		}

		job, err := rs.loadJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		job.Status = JobStatusInFlight
		job.LockedUntil = &lockUntil
		job.LockedBy = &workerID
		if err := rs.saveJob(ctx, job); err != nil {
			return nil, err
		}

		return job, nil
	}

	return nil, ErrNoJobToClaim
}

func (rs *RedisStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := rs.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != JobStatusInFlight {
		return fmt.Errorf("job %s is not in flight", jobID)
	}

	job.Status = JobStatusSucceeded
	job.LockedUntil = nil
	job.LockedBy = nil
	job.LastError = ""

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", jobID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.jobKey(jobID), data, 0)
	pipe.ZRem(ctx, rs.inflightKey(job.Channel), jobID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}

	return nil
}

func (rs *RedisStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, nextAttemptAt time.Time) (*Job, error) {
	job, err := rs.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobStatusInFlight {
		return nil, fmt.Errorf("job %s is not in flight", jobID)
	}

	job.AttemptCount++
	job.LastError = errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	pipe := rs.client.TxPipeline()
	pipe.ZRem(ctx, rs.inflightKey(job.Channel), jobID.String())

	if job.AttemptCount >= job.MaxAttempts {
		job.Status = JobStatusFailed
	} else {
		job.Status = JobStatusPending
		job.NextAttemptAt = nextAttemptAt
		pipe.ZAdd(ctx, rs.readyKey(job.Channel, job.Priority), redis.Z{
			Score:  float64(nextAttemptAt.UnixMilli()),
			Member: jobID.String(),
		})
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %s: %w", jobID, err)
	}
	pipe.Set(ctx, rs.jobKey(jobID), data, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to fail job %s: %w", jobID, err)
	}

	return job, nil
}

func (rs *RedisStorage) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	job, err := rs.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = JobStatusFailed
	job.LastError = errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", jobID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.jobKey(jobID), data, 0)
	pipe.ZRem(ctx, rs.inflightKey(job.Channel), jobID.String())
	pipe.ZRem(ctx, rs.readyKey(job.Channel, job.Priority), jobID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}

	return nil
}

func (rs *RedisStorage) CancelJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := rs.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != JobStatusPending || !job.NextAttemptAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: job %s status %s", ErrJobNotCancellable, jobID, job.Status)
	}

	// Remove from the ready set first so a racing claim cannot pick the job
	// up after we flip its status.
	removed, err := rs.client.ZRem(ctx, rs.readyKey(job.Channel, job.Priority), jobID.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	if removed == 0 {
		return nil, fmt.Errorf("%w: job %s already claimed", ErrJobNotCancellable, jobID)
	}

	job.Status = JobStatusCanceled
	if err := rs.saveJob(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

func (rs *RedisStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	return rs.loadJob(ctx, jobID)
}

// RecoverExpired releases locks held past their expiry on the given channel.
// Deployments run this periodically (e.g. from the dispatch worker's owner).
// First expiry requeues the job, a second one counts as a failed attempt.
func (rs *RedisStorage) RecoverExpired(ctx context.Context, channel Channel) (int, error) {
	now := time.Now()

	ids, err := rs.client.ZRangeByScore(ctx, rs.inflightKey(channel), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired locks on channel %s: %w", channel, err)
	}

	recovered := 0
	for _, idStr := range ids {
		jobID, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}

		job, err := rs.loadJob(ctx, jobID)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				_ = rs.client.ZRem(ctx, rs.inflightKey(channel), idStr).Err()
				continue
			}
			return recovered, err
		}

		job.LockedUntil = nil
		job.LockedBy = nil

		if !job.Requeued {
			job.Requeued = true
			job.Status = JobStatusPending
			job.NextAttemptAt = now
		} else {
			job.AttemptCount++
			job.LastError = "delivery attempt stalled: worker lock expired"
			if job.AttemptCount >= job.MaxAttempts {
				job.Status = JobStatusFailed
			} else {
				job.Status = JobStatusPending
				job.NextAttemptAt = now
			}
		}

		data, err := json.Marshal(job)
		if err != nil {
			return recovered, fmt.Errorf("failed to encode job %s: %w", jobID, err)
		}

		pipe := rs.client.TxPipeline()
		pipe.Set(ctx, rs.jobKey(jobID), data, 0)
		pipe.ZRem(ctx, rs.inflightKey(channel), idStr)
		if job.Status == JobStatusPending {
			pipe.ZAdd(ctx, rs.readyKey(channel, job.Priority), redis.Z{
				Score:  float64(job.NextAttemptAt.UnixMilli()),
				Member: idStr,
			})
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, fmt.Errorf("failed to recover job %s: %w", jobID, err)
		}

		recovered++
	}

	return recovered, nil
}

func (rs *RedisStorage) loadJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	data, err := rs.client.Get(ctx, rs.jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}

	return &job, nil
}

func (rs *RedisStorage) saveJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := rs.client.Set(ctx, rs.jobKey(job.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
)

func newJob(channel dispatch.Channel, due time.Time) *dispatch.Job {
	return &dispatch.Job{
		ID:             uuid.New(),
		NotificationID: uuid.New(),
		UserID:         "user-1",
		Channel:        channel,
		Payload:        []byte(`{"channel":"sms","content":{"phone_number":"+15551234567","text":"hi"}}`),
		Category:       "ride_updates",
		Priority:       dispatch.PriorityNormal,
		Status:         dispatch.JobStatusPending,
		MaxAttempts:    dispatch.DefaultMaxAttempts,
		NextAttemptAt:  due,
		CreatedAt:      time.Now(),
	}
}

func TestMemoryStorage_ClaimJob(t *testing.T) {
	t.Parallel()

	t.Run("claims due job and locks it", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		job := newJob(dispatch.ChannelSMS, time.Now().Add(-time.Second))
		require.NoError(t, store.CreateJob(context.Background(), job))

		workerID := uuid.New()
		claimed, err := store.ClaimJob(context.Background(), workerID, dispatch.ChannelSMS, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, dispatch.JobStatusInFlight, claimed.Status)
		require.NotNil(t, claimed.LockedBy)
		assert.Equal(t, workerID, *claimed.LockedBy)

		// A second claim on the same channel finds nothing.
		_, err = store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelSMS, time.Minute)
		assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)
	})

	t.Run("skips future jobs", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		require.NoError(t, store.CreateJob(context.Background(), newJob(dispatch.ChannelEmail, time.Now().Add(time.Hour))))

		_, err := store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelEmail, time.Minute)
		assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)
	})

	t.Run("channels are isolated", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		require.NoError(t, store.CreateJob(context.Background(), newJob(dispatch.ChannelEmail, time.Now().Add(-time.Second))))

		_, err := store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelPush, time.Minute)
		assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)
	})

	t.Run("urgent jobs claimed before older normal jobs", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		normal := newJob(dispatch.ChannelPush, time.Now().Add(-time.Minute))
		urgent := newJob(dispatch.ChannelPush, time.Now().Add(-time.Second))
		urgent.Priority = dispatch.PriorityUrgent
		require.NoError(t, store.CreateJob(context.Background(), normal))
		require.NoError(t, store.CreateJob(context.Background(), urgent))

		claimed, err := store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelPush, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, urgent.ID, claimed.ID)
	})
}

func TestMemoryStorage_FailJob(t *testing.T) {
	t.Parallel()

	t.Run("requeues with next attempt time while attempts remain", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		job := newJob(dispatch.ChannelEmail, time.Now().Add(-time.Second))
		require.NoError(t, store.CreateJob(context.Background(), job))

		_, err := store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelEmail, time.Minute)
		require.NoError(t, err)

		retryAt := time.Now().Add(2 * time.Second)
		updated, err := store.FailJob(context.Background(), job.ID, "smtp timeout", retryAt)
		require.NoError(t, err)
		assert.Equal(t, dispatch.JobStatusPending, updated.Status)
		assert.Equal(t, int8(1), updated.AttemptCount)
		assert.Equal(t, "smtp timeout", updated.LastError)
		assert.WithinDuration(t, retryAt, updated.NextAttemptAt, time.Millisecond)
	})

	t.Run("exhausting attempts fails terminally", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		job := newJob(dispatch.ChannelEmail, time.Now().Add(-time.Second))
		job.MaxAttempts = 2
		require.NoError(t, store.CreateJob(context.Background(), job))

		for attempt := 1; attempt <= 2; attempt++ {
			_, err := store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelEmail, time.Minute)
			require.NoError(t, err)

			updated, err := store.FailJob(context.Background(), job.ID, "provider down", time.Now())
			require.NoError(t, err)

			if attempt < 2 {
				assert.Equal(t, dispatch.JobStatusPending, updated.Status)
			} else {
				assert.Equal(t, dispatch.JobStatusFailed, updated.Status)
			}
		}

		// Terminal jobs are never claimable again.
		_, err := store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelEmail, time.Minute)
		assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)
	})
}

func TestMemoryStorage_CancelJob(t *testing.T) {
	t.Parallel()

	t.Run("cancels pending future job", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		job := newJob(dispatch.ChannelPush, time.Now().Add(time.Hour))
		require.NoError(t, store.CreateJob(context.Background(), job))

		canceled, err := store.CancelJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, dispatch.JobStatusCanceled, canceled.Status)

		_, err = store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelPush, time.Minute)
		assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)
	})

	t.Run("rejects due and claimed jobs", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		due := newJob(dispatch.ChannelPush, time.Now().Add(-time.Second))
		require.NoError(t, store.CreateJob(context.Background(), due))

		_, err := store.CancelJob(context.Background(), due.ID)
		assert.ErrorIs(t, err, dispatch.ErrJobNotCancellable)

		_, err = store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelPush, time.Minute)
		require.NoError(t, err)

		_, err = store.CancelJob(context.Background(), due.ID)
		assert.ErrorIs(t, err, dispatch.ErrJobNotCancellable)
	})

	t.Run("unknown job returns not found", func(t *testing.T) {
		t.Parallel()

		store := dispatch.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		_, err := store.CancelJob(context.Background(), uuid.New())
		assert.ErrorIs(t, err, dispatch.ErrJobNotFound)
	})
}

func TestMemoryStorage_StallRecovery(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	job := newJob(dispatch.ChannelSMS, time.Now().Add(-time.Second))
	require.NoError(t, store.CreateJob(context.Background(), job))

	// First stall: claim with a tiny lock and let it expire. The job must
	// come back as pending with the requeue flag set and no attempt burned.
	_, err := store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelSMS, 10*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == dispatch.JobStatusPending
	}, 3*time.Second, 50*time.Millisecond, "expired lock should requeue the job")

	recovered, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, recovered.Requeued)
	assert.Equal(t, int8(0), recovered.AttemptCount)

	// Second stall on the same job burns an attempt instead of requeueing.
	_, err = store.ClaimJob(context.Background(), uuid.New(), dispatch.ChannelSMS, 10*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == dispatch.JobStatusPending && got.AttemptCount == 1
	}, 3*time.Second, 50*time.Millisecond, "second expiry should count as a failed attempt")
}

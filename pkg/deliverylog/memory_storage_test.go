package deliverylog_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ridekit/pkg/deliverylog"
)

func TestMemoryStorage_Create(t *testing.T) {
	t.Parallel()

	t.Run("creates pending entry with defaults", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()
		notifID := uuid.New()

		err := store.Create(context.Background(), deliverylog.Entry{
			NotificationID: notifID,
			Channel:        "email",
			Category:       "ride_updates",
		})
		require.NoError(t, err)

		entry, err := store.Get(context.Background(), notifID, "email")
		require.NoError(t, err)
		assert.Equal(t, deliverylog.StatusPending, entry.Status)
		assert.False(t, entry.CreatedAt.IsZero())
		assert.Nil(t, entry.SentAt)
	})

	t.Run("rejects duplicate notification and channel pair", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()
		notifID := uuid.New()

		entry := deliverylog.Entry{NotificationID: notifID, Channel: "sms"}
		require.NoError(t, store.Create(context.Background(), entry))

		err := store.Create(context.Background(), entry)
		assert.ErrorIs(t, err, deliverylog.ErrEntryExists)
	})

	t.Run("same notification on different channels is allowed", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()
		notifID := uuid.New()

		require.NoError(t, store.Create(context.Background(), deliverylog.Entry{NotificationID: notifID, Channel: "email"}))
		require.NoError(t, store.Create(context.Background(), deliverylog.Entry{NotificationID: notifID, Channel: "push"}))
	})

	t.Run("validates required fields", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()

		err := store.Create(context.Background(), deliverylog.Entry{Channel: "email"})
		assert.ErrorIs(t, err, deliverylog.ErrNotificationIDEmpty)

		err = store.Create(context.Background(), deliverylog.Entry{NotificationID: uuid.New()})
		assert.ErrorIs(t, err, deliverylog.ErrChannelEmpty)
	})
}

func TestMemoryStorage_Transitions(t *testing.T) {
	t.Parallel()

	t.Run("mark sent records timestamp", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()
		notifID := uuid.New()
		require.NoError(t, store.Create(context.Background(), deliverylog.Entry{NotificationID: notifID, Channel: "email"}))

		sentAt := time.Now()
		require.NoError(t, store.MarkSent(context.Background(), notifID, "email", sentAt))

		entry, err := store.Get(context.Background(), notifID, "email")
		require.NoError(t, err)
		assert.Equal(t, deliverylog.StatusSent, entry.Status)
		require.NotNil(t, entry.SentAt)
		assert.WithinDuration(t, sentAt, *entry.SentAt, time.Millisecond)
	})

	t.Run("mark delivered backfills sent when provider skipped it", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()
		notifID := uuid.New()
		require.NoError(t, store.Create(context.Background(), deliverylog.Entry{NotificationID: notifID, Channel: "in_app"}))

		at := time.Now()
		require.NoError(t, store.MarkDelivered(context.Background(), notifID, "in_app", at))

		entry, err := store.Get(context.Background(), notifID, "in_app")
		require.NoError(t, err)
		assert.Equal(t, deliverylog.StatusDelivered, entry.Status)
		require.NotNil(t, entry.SentAt)
		require.NotNil(t, entry.DeliveredAt)
	})

	t.Run("mark failed stores error message", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()
		notifID := uuid.New()
		require.NoError(t, store.Create(context.Background(), deliverylog.Entry{NotificationID: notifID, Channel: "sms"}))

		at := time.Now()
		require.NoError(t, store.MarkFailed(context.Background(), notifID, "sms", "invalid phone number", at))

		entry, err := store.Get(context.Background(), notifID, "sms")
		require.NoError(t, err)
		assert.Equal(t, deliverylog.StatusFailed, entry.Status)
		assert.Equal(t, "invalid phone number", entry.Error)
		require.NotNil(t, entry.FailedAt)
		assert.Equal(t, at, *entry.FailedAt)
	})

	t.Run("transitions on missing entry return not found", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()

		err := store.MarkSent(context.Background(), uuid.New(), "email", time.Now())
		assert.ErrorIs(t, err, deliverylog.ErrEntryNotFound)
	})
}

func TestMemoryStorage_List(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) (*deliverylog.MemoryStorage, uuid.UUID) {
		t.Helper()
		store := deliverylog.NewMemoryStorage()
		failedID := uuid.New()

		now := time.Now()
		entries := []deliverylog.Entry{
			{NotificationID: uuid.New(), Channel: "email", Category: "ride_updates", CreatedAt: now.Add(-3 * time.Hour)},
			{NotificationID: uuid.New(), Channel: "push", Category: "promotions", CreatedAt: now.Add(-2 * time.Hour)},
			{NotificationID: failedID, Channel: "sms", Category: "ride_updates", CreatedAt: now.Add(-time.Hour)},
		}
		for _, e := range entries {
			require.NoError(t, store.Create(context.Background(), e))
		}
		require.NoError(t, store.MarkFailed(context.Background(), failedID, "sms", "provider down", now))
		return store, failedID
	}

	t.Run("returns newest first", func(t *testing.T) {
		t.Parallel()

		store, _ := seed(t)
		entries, err := store.List(context.Background(), deliverylog.Filter{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "sms", entries[0].Channel)
		assert.Equal(t, "email", entries[2].Channel)
	})

	t.Run("filters by status and category", func(t *testing.T) {
		t.Parallel()

		store, failedID := seed(t)

		entries, err := store.List(context.Background(), deliverylog.Filter{
			Status:   deliverylog.StatusFailed,
			Category: "ride_updates",
		})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, failedID, entries[0].NotificationID)
	})

	t.Run("filters by time window", func(t *testing.T) {
		t.Parallel()

		store, _ := seed(t)

		entries, err := store.List(context.Background(), deliverylog.Filter{
			From: time.Now().Add(-150 * time.Minute),
		})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestMemoryStorage_Stats(t *testing.T) {
	t.Parallel()

	store := deliverylog.NewMemoryStorage()
	now := time.Now()

	sentID, deliveredID := uuid.New(), uuid.New()
	require.NoError(t, store.Create(context.Background(), deliverylog.Entry{
		NotificationID: sentID, Channel: "email", CreatedAt: now.Add(-10 * time.Second),
	}))
	require.NoError(t, store.Create(context.Background(), deliverylog.Entry{
		NotificationID: deliveredID, Channel: "in_app", CreatedAt: now.Add(-10 * time.Second),
	}))
	require.NoError(t, store.Create(context.Background(), deliverylog.Entry{
		NotificationID: uuid.New(), Channel: "push", CreatedAt: now,
	}))

	require.NoError(t, store.MarkSent(context.Background(), sentID, "email", now.Add(-8*time.Second)))
	require.NoError(t, store.MarkSent(context.Background(), deliveredID, "in_app", now.Add(-6*time.Second)))
	require.NoError(t, store.MarkDelivered(context.Background(), deliveredID, "in_app", now.Add(-3*time.Second)))

	stats, err := store.Stats(context.Background(), deliverylog.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CountByStatus[deliverylog.StatusPending])
	assert.Equal(t, 1, stats.CountByStatus[deliverylog.StatusSent])
	assert.Equal(t, 1, stats.CountByStatus[deliverylog.StatusDelivered])
	assert.Equal(t, 3*time.Second, stats.AvgCreatedToSent)
	assert.Equal(t, 3*time.Second, stats.AvgSentToDelivered)
}

func TestMemoryStorage_Cleanup(t *testing.T) {
	t.Parallel()

	store := deliverylog.NewMemoryStorage()
	old := time.Now().Add(-100 * 24 * time.Hour)

	deliveredID, pendingID := uuid.New(), uuid.New()
	require.NoError(t, store.Create(context.Background(), deliverylog.Entry{
		NotificationID: deliveredID, Channel: "email", CreatedAt: old,
	}))
	require.NoError(t, store.Create(context.Background(), deliverylog.Entry{
		NotificationID: pendingID, Channel: "email", CreatedAt: old,
	}))
	require.NoError(t, store.MarkDelivered(context.Background(), deliveredID, "email", old.Add(time.Second)))

	removed, err := store.Cleanup(context.Background(), time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Non-terminal entries survive even past the retention cutoff.
	_, err = store.Get(context.Background(), pendingID, "email")
	assert.NoError(t, err)

	_, err = store.Get(context.Background(), deliveredID, "email")
	assert.ErrorIs(t, err, deliverylog.ErrEntryNotFound)
}

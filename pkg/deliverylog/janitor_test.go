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

func TestJanitor_Start(t *testing.T) {
	t.Parallel()

	t.Run("immediate sweep removes aged terminal entries", func(t *testing.T) {
		t.Parallel()

		store := deliverylog.NewMemoryStorage()

		oldID := uuid.New()
		require.NoError(t, store.Create(context.Background(), deliverylog.Entry{
			NotificationID: oldID,
			Channel:        "email",
			CreatedAt:      time.Now().Add(-48 * time.Hour),
		}))
		require.NoError(t, store.MarkFailed(context.Background(), oldID, "email", "bounced", time.Now().Add(-48*time.Hour)))

		pendingID := uuid.New()
		require.NoError(t, store.Create(context.Background(), deliverylog.Entry{
			NotificationID: pendingID,
			Channel:        "email",
			CreatedAt:      time.Now().Add(-48 * time.Hour),
		}))

		janitor := deliverylog.NewJanitor(store,
			deliverylog.WithRetention(24*time.Hour),
			deliverylog.WithSweepInterval(time.Hour))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- janitor.Start(ctx) }()

		// The first sweep runs before the ticker loop, so the aged entry
		// disappears without waiting out the interval.
		require.Eventually(t, func() bool {
			_, err := store.Get(context.Background(), oldID, "email")
			return err != nil
		}, time.Second, 10*time.Millisecond)

		_, err := store.Get(context.Background(), pendingID, "email")
		assert.NoError(t, err, "pending entries survive retention sweeps")

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("janitor did not stop after cancellation")
		}
	})

	t.Run("cancellation stops the loop without an error", func(t *testing.T) {
		t.Parallel()

		janitor := deliverylog.NewJanitor(deliverylog.NewMemoryStorage())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.NoError(t, janitor.Start(ctx))
	})
}

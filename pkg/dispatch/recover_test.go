package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
)

// fakeRecoverer counts sweeps per channel and fails on demand.
type fakeRecoverer struct {
	mu     sync.Mutex
	sweeps map[dispatch.Channel]int
	errOn  dispatch.Channel
}

func (r *fakeRecoverer) RecoverExpired(ctx context.Context, channel dispatch.Channel) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sweeps == nil {
		r.sweeps = make(map[dispatch.Channel]int)
	}
	r.sweeps[channel]++

	if channel == r.errOn {
		return 0, errors.New("redis unavailable")
	}
	return 1, nil
}

func (r *fakeRecoverer) sweepCount(channel dispatch.Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweeps[channel]
}

func TestRecoverLoop(t *testing.T) {
	t.Parallel()

	t.Run("sweeps every channel until canceled", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecoverer{}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- dispatch.RecoverLoop(ctx, rec, 10*time.Millisecond, nil,
				dispatch.ChannelEmail, dispatch.ChannelPush)()
		}()

		require.Eventually(t, func() bool {
			return rec.sweepCount(dispatch.ChannelEmail) >= 2 &&
				rec.sweepCount(dispatch.ChannelPush) >= 2
		}, 3*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err, "graceful shutdown must not surface an error")
		case <-time.After(time.Second):
			t.Fatal("recover loop did not stop on cancellation")
		}
	})

	t.Run("one channel's failure never skips the others", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecoverer{errOn: dispatch.ChannelEmail}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go dispatch.RecoverLoop(ctx, rec, 10*time.Millisecond, nil,
			dispatch.ChannelEmail, dispatch.ChannelSMS)()

		require.Eventually(t, func() bool {
			return rec.sweepCount(dispatch.ChannelSMS) >= 2
		}, 3*time.Second, 10*time.Millisecond)
	})
}

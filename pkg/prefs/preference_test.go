package prefs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ridekit/pkg/prefs"
)

func TestPreference_ChannelEnabled(t *testing.T) {
	t.Parallel()

	t.Run("zero value enables everything", func(t *testing.T) {
		t.Parallel()

		p := prefs.Default()
		assert.True(t, p.ChannelEnabled("email"))
		assert.True(t, p.ChannelEnabled("push"))
	})

	t.Run("explicit false disables", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{Channels: map[string]bool{"push": false}}
		assert.False(t, p.ChannelEnabled("push"))
		assert.True(t, p.ChannelEnabled("email"))
	})

	t.Run("missing key stays enabled", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{Channels: map[string]bool{"sms": true}}
		assert.True(t, p.ChannelEnabled("email"))
	})
}

func TestPreference_CategoryEnabled(t *testing.T) {
	t.Parallel()

	t.Run("empty list enables all", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{}
		assert.True(t, p.CategoryEnabled("ride_updates"))
	})

	t.Run("explicit list gates", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{Categories: []string{"ride_updates"}}
		assert.True(t, p.CategoryEnabled("ride_updates"))
		assert.False(t, p.CategoryEnabled("marketing"))
	})
}

func TestPreference_InQuietHours(t *testing.T) {
	t.Parallel()

	t.Run("no window configured", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{}
		assert.False(t, p.InQuietHours(time.Now()))
	})

	t.Run("window spanning midnight", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{
			QuietStart: "22:00",
			QuietEnd:   "06:00",
			Timezone:   "UTC",
		}

		at := func(hour, minute int) time.Time {
			return time.Date(2025, 6, 15, hour, minute, 0, 0, time.UTC)
		}

		assert.True(t, p.InQuietHours(at(23, 30)))
		assert.True(t, p.InQuietHours(at(2, 0)))
		assert.True(t, p.InQuietHours(at(6, 0)))
		assert.False(t, p.InQuietHours(at(12, 0)))
		assert.False(t, p.InQuietHours(at(21, 59)))
	})

	t.Run("same-day window", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{
			QuietStart: "13:00",
			QuietEnd:   "15:00",
		}

		at := func(hour int) time.Time {
			return time.Date(2025, 6, 15, hour, 0, 0, 0, time.UTC)
		}

		assert.True(t, p.InQuietHours(at(14)))
		assert.False(t, p.InQuietHours(at(16)))
		assert.False(t, p.InQuietHours(at(12)))
	})

	t.Run("respects timezone", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{
			QuietStart: "22:00",
			QuietEnd:   "06:00",
			Timezone:   "America/New_York",
		}

		// 03:30 UTC is 23:30 in New York during June (EDT, UTC-4).
		at := time.Date(2025, 6, 15, 3, 30, 0, 0, time.UTC)
		assert.True(t, p.InQuietHours(at))
	})

	t.Run("invalid window treated as absent", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{
			QuietStart: "25:99",
			QuietEnd:   "06:00",
		}
		assert.False(t, p.InQuietHours(time.Now()))
	})
}

func TestPreference_QuietHoursEnd(t *testing.T) {
	t.Parallel()

	t.Run("deferral target inside midnight-spanning window", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{
			QuietStart: "22:00",
			QuietEnd:   "06:00",
			Timezone:   "UTC",
		}

		now := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
		end, err := p.QuietHoursEnd(now)
		require.NoError(t, err)

		assert.Equal(t, time.Date(2025, 6, 16, 6, 0, 0, 0, time.UTC), end)
	})

	t.Run("early-morning request defers to same day", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{
			QuietStart: "22:00",
			QuietEnd:   "06:00",
			Timezone:   "UTC",
		}

		now := time.Date(2025, 6, 15, 2, 0, 0, 0, time.UTC)
		end, err := p.QuietHoursEnd(now)
		require.NoError(t, err)

		assert.Equal(t, time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC), end)
	})

	t.Run("inside the end minute resolves to now, not tomorrow", func(t *testing.T) {
		t.Parallel()

		p := prefs.Preference{
			QuietStart: "22:00",
			QuietEnd:   "06:00",
			Timezone:   "UTC",
		}

		// 06:00:30 is still inside the minute-granular window, but the
		// deferral target must not roll over to the next day's 06:00.
		now := time.Date(2025, 6, 15, 6, 0, 30, 0, time.UTC)
		end, err := p.QuietHoursEnd(now)
		require.NoError(t, err)

		assert.Equal(t, now, end)
	})

	t.Run("no window configured", func(t *testing.T) {
		t.Parallel()

		_, err := prefs.Preference{}.QuietHoursEnd(time.Now())
		assert.ErrorIs(t, err, prefs.ErrNoQuietHours)
	})
}

func TestStaticResolver(t *testing.T) {
	t.Parallel()

	resolver := prefs.NewStaticResolver(map[string]prefs.Preference{
		"user-1": {Channels: map[string]bool{"push": false}},
	})

	t.Run("known user", func(t *testing.T) {
		t.Parallel()

		p, err := resolver.Resolve(context.Background(), "user-1")
		require.NoError(t, err)
		assert.False(t, p.ChannelEnabled("push"))
	})

	t.Run("unknown user gets defaults", func(t *testing.T) {
		t.Parallel()

		p, err := resolver.Resolve(context.Background(), "user-2")
		require.NoError(t, err)
		assert.True(t, p.ChannelEnabled("push"))
		assert.True(t, p.CategoryEnabled("anything"))
	})
}

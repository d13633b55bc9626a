package prefs

import (
	"fmt"
	"slices"
	"time"
)

// clockLayout is the wall-clock format used for quiet hours boundaries.
const clockLayout = "15:04"

// Preference describes how a single user wants to receive notifications.
//
// A zero-value Preference enables everything: all channels, all categories,
// no quiet hours. Explicit opt-out is required to suppress anything, so a
// missing preference record never silently drops notifications.
type Preference struct {
	// Channels maps channel names to enabled flags. A nil map or a missing
	// key means the channel is enabled; only an explicit false disables it.
	Channels map[string]bool `json:"channels,omitempty"`

	// Categories lists the notification categories the user opted into.
	// An empty list means all categories are enabled.
	Categories []string `json:"categories,omitempty"`

	// QuietStart and QuietEnd bound the local time-of-day window during
	// which non-urgent notifications are deferred, in "15:04" format.
	// Both must be set for quiet hours to take effect.
	QuietStart string `json:"quiet_hours_start,omitempty"`
	QuietEnd   string `json:"quiet_hours_end,omitempty"`

	// Timezone is the IANA name of the user's local timezone, e.g.
	// "America/New_York". Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// Default returns the permissive preference used when a user has no
// stored record.
func Default() Preference {
	return Preference{}
}

// ChannelEnabled reports whether the given channel is enabled.
func (p Preference) ChannelEnabled(channel string) bool {
	if p.Channels == nil {
		return true
	}
	enabled, ok := p.Channels[channel]
	if !ok {
		return true
	}
	return enabled
}

// CategoryEnabled reports whether the given notification category is enabled.
// An empty category list implicitly enables every category.
func (p Preference) CategoryEnabled(category string) bool {
	if len(p.Categories) == 0 {
		return true
	}
	return slices.Contains(p.Categories, category)
}

// HasQuietHours reports whether a quiet-hours window is configured.
func (p Preference) HasQuietHours() bool {
	return p.QuietStart != "" && p.QuietEnd != ""
}

// InQuietHours reports whether now falls inside the user's quiet-hours
// window, evaluated in the user's timezone. Windows spanning midnight
// (start > end) are in range when now >= start OR now <= end.
// Misconfigured windows are treated as absent rather than failing delivery.
func (p Preference) InQuietHours(now time.Time) bool {
	if !p.HasQuietHours() {
		return false
	}

	start, end, loc, err := p.quietWindow()
	if err != nil {
		return false
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start > end {
		return minute >= start || minute <= end
	}
	return minute >= start && minute <= end
}

// QuietHoursEnd returns the next absolute moment the quiet-hours window
// closes, at or after now, evaluated in the user's timezone.
func (p Preference) QuietHoursEnd(now time.Time) (time.Time, error) {
	if !p.HasQuietHours() {
		return time.Time{}, ErrNoQuietHours
	}

	_, end, loc, err := p.quietWindow()
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, loc)
	if !candidate.After(local) {
		// The window boundary is minute-granular while now is not: inside
		// the end minute (e.g. 06:00:30 against an 06:00 end) the window is
		// effectively over, so the caller gets now back instead of a
		// full-day deferral to tomorrow's end.
		if local.Sub(candidate) < time.Minute {
			return local, nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}

	return candidate, nil
}

// quietWindow parses the configured window into minutes-of-day and resolves
// the user's location.
func (p Preference) quietWindow() (start, end int, loc *time.Location, err error) {
	startClock, err := time.Parse(clockLayout, p.QuietStart)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: start %q", ErrInvalidQuietHours, p.QuietStart)
	}
	endClock, err := time.Parse(clockLayout, p.QuietEnd)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: end %q", ErrInvalidQuietHours, p.QuietEnd)
	}

	loc = time.UTC
	if p.Timezone != "" {
		loc, err = time.LoadLocation(p.Timezone)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("%w: timezone %q", ErrInvalidQuietHours, p.Timezone)
		}
	}

	return startClock.Hour()*60 + startClock.Minute(), endClock.Hour()*60 + endClock.Minute(), loc, nil
}

// Package prefs models per-user delivery preferences: channel opt-outs,
// category opt-ins and quiet hours.
//
// The dispatch engine consults a Resolver before creating any delivery jobs.
// The package is deliberately permissive: a zero-value Preference (and any
// user without a stored record) has every channel and category enabled and
// no quiet hours, so absent configuration can never suppress a notification.
//
// Quiet hours are a local time-of-day window in the user's timezone.
// Windows may span midnight: start 22:00, end 06:00 covers 22:00-23:59 and
// 00:00-06:00. InQuietHours evaluates membership; QuietHoursEnd yields the
// absolute deferral target used when a non-urgent notification arrives
// inside the window.
package prefs

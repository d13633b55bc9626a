package prefs

import "errors"

var (
	// ErrNoQuietHours is returned when quiet-hours helpers are called on a
	// preference without a configured window.
	ErrNoQuietHours = errors.New("prefs: no quiet hours configured")

	// ErrInvalidQuietHours is returned when the configured window or
	// timezone cannot be parsed.
	ErrInvalidQuietHours = errors.New("prefs: invalid quiet hours configuration")
)

package deliverylog

import "errors"

var (
	// ErrEntryNotFound is returned when no entry exists for the given
	// notification id and channel pair.
	ErrEntryNotFound = errors.New("delivery log entry not found")
	// ErrEntryExists is returned when an entry for the notification id
	// and channel pair has already been recorded.
	ErrEntryExists = errors.New("delivery log entry already exists")
	// ErrNotificationIDEmpty is returned when an entry is created without
	// a notification id.
	ErrNotificationIDEmpty = errors.New("notification id cannot be empty")
	// ErrChannelEmpty is returned when an entry is created without a channel.
	ErrChannelEmpty = errors.New("channel cannot be empty")
	// ErrFailedToStoreEntry wraps backend failures on writes.
	ErrFailedToStoreEntry = errors.New("failed to store delivery log entry")
	// ErrFailedToQueryEntries wraps backend failures on reads.
	ErrFailedToQueryEntries = errors.New("failed to query delivery log entries")
)

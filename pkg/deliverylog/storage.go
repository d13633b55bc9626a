package deliverylog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists delivery log entries. The write path is append/update
// only and is driven exclusively by the dispatch engine; the read path
// serves statistics and operator queries.
type Storage interface {
	// Create appends a pending entry for a (notification, channel) pair.
	Create(ctx context.Context, entry Entry) error

	// MarkSent transitions the entry to sent and stamps SentAt.
	MarkSent(ctx context.Context, notificationID uuid.UUID, channel string, at time.Time) error

	// MarkDelivered transitions the entry to delivered and stamps
	// DeliveredAt. Used when the adapter confirms delivery synchronously.
	MarkDelivered(ctx context.Context, notificationID uuid.UUID, channel string, at time.Time) error

	// MarkFailed transitions the entry to failed with the final error.
	MarkFailed(ctx context.Context, notificationID uuid.UUID, channel string, errMsg string, at time.Time) error

	// Get returns the entry for a (notification, channel) pair.
	Get(ctx context.Context, notificationID uuid.UUID, channel string) (*Entry, error)

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Entry, error)

	// Stats aggregates entries matching the filter.
	Stats(ctx context.Context, filter Filter) (Stats, error)

	// Cleanup removes terminal entries created before the cutoff and
	// returns the number removed. Pending and sent entries are never
	// touched regardless of age.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}

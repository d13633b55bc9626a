// Package deliverylog records the lifecycle of notification deliveries per
// channel for auditing and troubleshooting.
//
// Every job the dispatch engine creates gets one entry per (notification,
// channel) pair. The entry moves through pending, sent, and optionally
// delivered or failed. Terminal entries are retained for a configurable
// window and then swept by the Janitor.
//
// # Usage
//
//	store := deliverylog.NewMemoryStorage()
//
//	err := store.Create(ctx, deliverylog.Entry{
//		NotificationID: notifID,
//		Channel:        "email",
//		Category:       "ride_updates",
//	})
//
//	// After the provider accepts the message:
//	err = store.MarkSent(ctx, notifID, "email", time.Now())
//
//	// Query recent failures:
//	entries, err := store.List(ctx, deliverylog.Filter{
//		Status: deliverylog.StatusFailed,
//		From:   time.Now().Add(-24 * time.Hour),
//	})
//
// For production use NewPGStorage with a pgx connection pool, and run the
// Janitor to enforce retention:
//
//	janitor := deliverylog.NewJanitor(store,
//		deliverylog.WithRetention(30*24*time.Hour))
//	go janitor.Start(ctx)
package deliverylog

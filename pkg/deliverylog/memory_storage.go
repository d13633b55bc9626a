package deliverylog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entryKey struct {
	notificationID uuid.UUID
	channel        string
}

// MemoryStorage is an in-memory Storage implementation for testing and
// local development.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[entryKey]*Entry
}

// NewMemoryStorage creates a new in-memory delivery log.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[entryKey]*Entry),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, entry Entry) error {
	if entry.NotificationID == uuid.Nil {
		return ErrNotificationIDEmpty
	}
	if entry.Channel == "" {
		return ErrChannelEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{entry.NotificationID, entry.Channel}
	if _, exists := s.entries[key]; exists {
		return fmt.Errorf("%w: notification %s channel %s", ErrEntryExists, entry.NotificationID, entry.Channel)
	}

	if entry.Status == "" {
		entry.Status = StatusPending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	stored := entry
	s.entries[key] = &stored
	return nil
}

func (s *MemoryStorage) MarkSent(ctx context.Context, notificationID uuid.UUID, channel string, at time.Time) error {
	return s.update(notificationID, channel, func(e *Entry) {
		e.Status = StatusSent
		e.SentAt = &at
		e.Error = ""
	})
}

func (s *MemoryStorage) MarkDelivered(ctx context.Context, notificationID uuid.UUID, channel string, at time.Time) error {
	return s.update(notificationID, channel, func(e *Entry) {
		e.Status = StatusDelivered
		if e.SentAt == nil {
			e.SentAt = &at
		}
		e.DeliveredAt = &at
		e.Error = ""
	})
}

func (s *MemoryStorage) MarkFailed(ctx context.Context, notificationID uuid.UUID, channel string, errMsg string, at time.Time) error {
	return s.update(notificationID, channel, func(e *Entry) {
		e.Status = StatusFailed
		e.Error = errMsg
		e.FailedAt = &at
	})
}

func (s *MemoryStorage) Get(ctx context.Context, notificationID uuid.UUID, channel string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[entryKey{notificationID, channel}]
	if !exists {
		return nil, ErrEntryNotFound
	}

	entry := *e
	return &entry, nil
}

func (s *MemoryStorage) List(ctx context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0)
	for _, e := range s.entries {
		if filter.matches(*e) {
			entries = append(entries, *e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}

func (s *MemoryStorage) Stats(ctx context.Context, filter Filter) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{CountByStatus: make(map[Status]int)}

	var createdToSent, sentToDelivered time.Duration
	var sentCount, deliveredCount int

	for _, e := range s.entries {
		if !filter.matches(*e) {
			continue
		}

		stats.CountByStatus[e.Status]++

		if e.SentAt != nil {
			createdToSent += e.SentAt.Sub(e.CreatedAt)
			sentCount++
		}
		if e.SentAt != nil && e.DeliveredAt != nil {
			sentToDelivered += e.DeliveredAt.Sub(*e.SentAt)
			deliveredCount++
		}
	}

	if sentCount > 0 {
		stats.AvgCreatedToSent = createdToSent / time.Duration(sentCount)
	}
	if deliveredCount > 0 {
		stats.AvgSentToDelivered = sentToDelivered / time.Duration(deliveredCount)
	}

	return stats, nil
}

func (s *MemoryStorage) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.Status.Terminal() && e.CreatedAt.Before(olderThan) {
			delete(s.entries, key)
			removed++
		}
	}

	return removed, nil
}

func (s *MemoryStorage) update(notificationID uuid.UUID, channel string, apply func(*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[entryKey{notificationID, channel}]
	if !exists {
		return ErrEntryNotFound
	}

	apply(e)
	return nil
}

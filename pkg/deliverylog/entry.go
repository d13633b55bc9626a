package deliverylog

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the delivery progress of one notification on one channel.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final. Only terminal entries are
// eligible for retention cleanup.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Entry is the append-only record of one notification's delivery on one
// channel. A single entry covers the whole attempt sequence of a job and is
// updated in place as the job transitions; it is never duplicated per
// attempt.
type Entry struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	Channel        string     `json:"channel"`
	Category       string     `json:"category,omitempty"`
	Status         Status     `json:"status"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`
}

// Filter narrows List and Stats queries. Zero fields match everything.
type Filter struct {
	Channel  string
	Category string
	Status   Status
	From     time.Time
	To       time.Time
}

func (f Filter) matches(e Entry) bool {
	if f.Channel != "" && e.Channel != f.Channel {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// Stats aggregates delivery outcomes for operator dashboards: counts by
// status plus mean latencies between the lifecycle timestamps.
type Stats struct {
	CountByStatus      map[Status]int `json:"count_by_status"`
	AvgCreatedToSent   time.Duration  `json:"avg_created_to_sent"`
	AvgSentToDelivered time.Duration  `json:"avg_sent_to_delivered"`
}

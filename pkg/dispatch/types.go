package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery channel for outbound notifications.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Valid reports whether the channel is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// Priority controls quiet-hours handling. Urgent notifications bypass the
// user's quiet-hours window.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// JobStatus represents the lifecycle state of a notification job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusInFlight  JobStatus = "in_flight"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}

// SuppressReason explains why a channel was skipped at dispatch time.
type SuppressReason string

const (
	SuppressCategoryDisabled SuppressReason = "category_disabled"
	SuppressChannelDisabled  SuppressReason = "channel_disabled"
)

// DefaultMaxAttempts is the number of delivery attempts before a job fails
// terminally.
const DefaultMaxAttempts int8 = 3

// Job is a single channel delivery unit. A notification fans out into one
// job per enabled channel; jobs retry independently.
type Job struct {
	ID             uuid.UUID  `json:"id"`
	NotificationID uuid.UUID  `json:"notification_id"`
	UserID         string     `json:"user_id"`
	Channel        Channel    `json:"channel"`
	Payload        []byte     `json:"payload"`
	Category       string     `json:"category"`
	Priority       Priority   `json:"priority"`
	Status         JobStatus  `json:"status"`
	AttemptCount   int8       `json:"attempt_count"`
	MaxAttempts    int8       `json:"max_attempts"`
	NextAttemptAt  time.Time  `json:"next_attempt_at"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	LockedBy       *uuid.UUID `json:"locked_by,omitempty"`
	Requeued       bool       `json:"requeued"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

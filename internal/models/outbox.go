package models

import (
	"time"

	"gorm.io/datatypes"
)

// OutboxStatus is the delivery state of an outbox event
type OutboxStatus string

const (
	OutboxStatusPending     OutboxStatus = "PENDING"
	OutboxStatusDispatching OutboxStatus = "DISPATCHING"
	OutboxStatusPublished   OutboxStatus = "PUBLISHED"
	OutboxStatusRetry       OutboxStatus = "RETRY"
	OutboxStatusDead        OutboxStatus = "DEAD"
)

// LeaseExpiredError is recorded when an expired lease is claimed again. The
// abandoned delivery counts as a spent attempt.
const LeaseExpiredError = "dispatch lease expired before an outcome was recorded"

// An expired DISPATCHING lease may be claimed again, hence the self edge.
var outboxTransitions = map[OutboxStatus][]OutboxStatus{
	OutboxStatusPending:     {OutboxStatusDispatching},
	OutboxStatusRetry:       {OutboxStatusDispatching},
	OutboxStatusDispatching: {OutboxStatusDispatching, OutboxStatusPublished, OutboxStatusRetry, OutboxStatusDead},
}

// CanTransitionTo reports whether an event may move from s to next.
func (s OutboxStatus) CanTransitionTo(next OutboxStatus) bool {
	for _, allowed := range outboxTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispatcher will never touch the event again.
func (s OutboxStatus) IsTerminal() bool {
	return s == OutboxStatusPublished || s == OutboxStatusDead
}

// IsValid reports whether s is one of the five known states.
func (s OutboxStatus) IsValid() bool {
	switch s {
	case OutboxStatusPending, OutboxStatusDispatching, OutboxStatusPublished, OutboxStatusRetry, OutboxStatusDead:
		return true
	}
	return false
}

// OutboxEvent is a durable integration event awaiting delivery
type OutboxEvent struct {
	ID             string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID       string         `json:"tenant_id" gorm:"not null;index"`
	AggregateType  string         `json:"aggregate_type" gorm:"not null"`
	AggregateID    string         `json:"aggregate_id" gorm:"not null;index"`
	EventType      string         `json:"event_type" gorm:"not null"`
	Payload        datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Status         OutboxStatus   `json:"status" gorm:"type:varchar(16);not null;index:idx_outbox_events_due,priority:1"`
	AttemptCount   int            `json:"attempt_count" gorm:"not null;default:0"`
	NextAttemptAt  *time.Time     `json:"next_attempt_at,omitempty" gorm:"index:idx_outbox_events_due,priority:2"`
	LastError      string         `json:"last_error,omitempty" gorm:"type:text"`
	LeaseOwner     string         `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time     `json:"lease_expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at" gorm:"not null;index"`
	PublishedAt    *time.Time     `json:"published_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the table name for OutboxEvent
func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// IsDue reports whether the event is eligible for a dispatch attempt at now.
func (e *OutboxEvent) IsDue(now time.Time) bool {
	switch e.Status {
	case OutboxStatusPending, OutboxStatusRetry:
		return e.NextAttemptAt == nil || !e.NextAttemptAt.After(now)
	case OutboxStatusDispatching:
		return e.LeaseExpiresAt != nil && !e.LeaseExpiresAt.After(now)
	}
	return false
}

package models

import (
	"time"

	"github.com/mmdatafocus/fund_ledger/config"
)

// LedgerEvent is the structured notification emitted by every accepted mutation.
type LedgerEvent struct {
	Kind          EventKind `json:"kind"`
	Role          Role      `json:"role"`
	Actor         string    `json:"actor"`
	EntityID      int64     `json:"entity_id"`
	Subject       string    `json:"subject,omitempty"`
	Amount        int64     `json:"amount"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID string    `json:"correlation_id"`
}

// NotificationRecord is the transactional outbox row for a LedgerEvent.
// It is written in the same DB transaction as the state change and
// published after commit by the outbox dispatcher.
type NotificationRecord struct {
	ID            int64     `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	Kind          EventKind `gorm:"size:64;index;not null" json:"kind"`
	Role          Role      `gorm:"size:16" json:"role"`
	Actor         string    `gorm:"size:128" json:"actor"`
	EntityID      int64     `json:"entity_id"`
	Subject       string    `gorm:"size:128" json:"subject"`
	Amount        int64     `json:"amount"`
	Detail        string    `gorm:"type:text" json:"detail"`
	OccurredAt    time.Time `gorm:"index;not null" json:"occurred_at"`
	CorrelationID string    `gorm:"size:64;index" json:"correlation_id"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageID  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func NewNotificationRecord(ev LedgerEvent) NotificationRecord {
	return NotificationRecord{
		Kind:          ev.Kind,
		Role:          ev.Role,
		Actor:         ev.Actor,
		EntityID:      ev.EntityID,
		Subject:       ev.Subject,
		Amount:        ev.Amount,
		Detail:        ev.Detail,
		OccurredAt:    ev.OccurredAt,
		CorrelationID: ev.CorrelationID,
		PublishStatus: OutboxPublishStatusPending,
	}
}

func ConvertToNotificationMessage(record NotificationRecord) config.NotificationMessage {
	return config.NotificationMessage{
		ID:            record.ID,
		Kind:          string(record.Kind),
		Role:          string(record.Role),
		Actor:         record.Actor,
		EntityId:      record.EntityID,
		Subject:       record.Subject,
		Amount:        record.Amount,
		Detail:        record.Detail,
		OccurredAt:    record.OccurredAt,
		CorrelationId: record.CorrelationID,
	}
}

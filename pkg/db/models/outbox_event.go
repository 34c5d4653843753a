package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/pkg/enums"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes. cmd/outbox-publisher drains unpublished rows.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at;index:idx_outbox_events_unpublished,where:published_at IS NULL"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

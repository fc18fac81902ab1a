package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is one entry in the dedup ledger. The unique index on
// EventHash is load-bearing: two concurrent identical deliveries race on the
// insert and the loser sees a duplicate-key error, which is how at-most-once
// processing is enforced at the storage layer rather than in application
// code.
type WebhookEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Channel   string         `gorm:"size:40;not null;index" json:"channel"`
	EventHash string         `gorm:"size:64;uniqueIndex;not null" json:"event_hash"`
	Processed bool           `gorm:"default:false" json:"processed"`
	Payload   datatypes.JSON `json:"payload"`
	Notes     string         `gorm:"size:255" json:"notes"`
	CreatedAt time.Time      `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "mpesa_webhook_events" }

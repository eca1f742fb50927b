package models

import "time"

// WebhookEvent is the idempotency witness for provider webhooks: a row exists
// for every event id that has been applied. Rows are append-only and carry no
// foreign key so events for unknown users can still be marked as seen.
type WebhookEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType   string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ProcessedAt time.Time `gorm:"not null;index" json:"processed_at"`
}

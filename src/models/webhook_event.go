package models

import "time"

// WebhookEvent is an insert-once dedupe record keyed by the payment
// processor's event id. A uniqueness violation on insert is the replay signal.
type WebhookEvent struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
}

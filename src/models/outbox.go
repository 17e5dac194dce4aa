package models

import (
	"qrshop/src/types"

	"github.com/google/uuid"
)

// OutboxMessage records a notification owed to someone. The webhook only
// writes these rows; a background job drains them with its own retry policy.
type OutboxMessage struct {
	ID        uuid.UUID          `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Kind      string             `gorm:"index" json:"kind"`
	Recipient string             `json:"recipient"`
	Subject   string             `json:"subject,omitempty"`
	Payload   types.JSONB        `gorm:"type:jsonb" json:"payload,omitempty"`
	Status    types.OutboxStatus `gorm:"default:'pending';index" json:"status"`
	Attempts  uint               `gorm:"default:0" json:"attempts"`
	LastError *string            `json:"last_error,omitempty"`

	types.Timestamps
}

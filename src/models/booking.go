package models

import (
	"qrshop/src/types"

	"github.com/google/uuid"
)

type Booking struct {
	ID                uuid.UUID           `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Handle            string              `gorm:"index" json:"handle"`
	SlotID            uint                `json:"slot_id"`
	Status            types.BookingStatus `gorm:"default:'pending'" json:"status"`
	CheckoutSessionId *string             `json:"checkout_session_id,omitempty"`
	PaymentIntentId   *string             `json:"payment_intent_id,omitempty"`
	CustomerName      *string             `json:"customer_name,omitempty"`
	CustomerEmail     *string             `json:"customer_email,omitempty"`
	CustomerPhone     *string             `json:"customer_phone,omitempty"`

	Slot *Slot `gorm:"foreignKey:slot_id" json:"slot,omitempty"`

	types.Timestamps
}

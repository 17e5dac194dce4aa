package models

import (
	"time"

	"qrshop/src/types"

	"github.com/google/uuid"
)

// Order covers one-off purchases, products and digital goods. Rows are created
// pending before the checkout session exists; only the webhook moves them to paid.
type Order struct {
	ID                uuid.UUID         `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Handle            string            `gorm:"index" json:"handle"`
	Mode              types.SaleMode    `json:"mode"`
	ItemTitle         string            `json:"item_title"`
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	Status            types.OrderStatus `gorm:"default:'pending'" json:"status"`
	Paid              bool              `gorm:"default:false" json:"paid"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	CheckoutSessionId *string           `json:"checkout_session_id,omitempty"`
	PaymentIntentId   *string           `json:"payment_intent_id,omitempty"`
	CustomerName      *string           `json:"customer_name,omitempty"`
	CustomerEmail     *string           `json:"customer_email,omitempty"`
	CustomerPhone     *string           `json:"customer_phone,omitempty"`
	Metadata          *types.JSONB      `gorm:"type:jsonb" json:"metadata,omitempty"`

	types.Timestamps
}

package models

import (
	"qrshop/src/types"

	"github.com/google/uuid"
)

type Tip struct {
	ID                uuid.UUID       `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Handle            string          `gorm:"index" json:"handle"`
	AmountCents       int64           `json:"amount_cents"`
	Currency          string          `json:"currency"`
	Status            types.TipStatus `gorm:"default:'pending'" json:"status"`
	CheckoutSessionId *string         `json:"checkout_session_id,omitempty"`
	TipperName        *string         `json:"tipper_name,omitempty"`
	TipperEmail       *string         `json:"tipper_email,omitempty"`
	TipperPhone       *string         `json:"tipper_phone,omitempty"`

	types.Timestamps
}

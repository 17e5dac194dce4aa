package models

import (
	"qrshop/src/types"
)

// Site is the tenant record. The same shape is read from every candidate
// tenant table left behind by schema migrations; "sites" is the canonical one.
type Site struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Handle          string         `gorm:"uniqueIndex" json:"handle"`
	OwnerUserID     string         `gorm:"index" json:"owner_user_id,omitempty"`
	ContactEmail    string         `json:"contact_email,omitempty"`
	StripeAccountID *string        `json:"stripe_account_id,omitempty"`
	ChargesEnabled  bool           `gorm:"default:false" json:"charges_enabled,omitempty"`
	Plan            types.SitePlan `gorm:"default:'free'" json:"plan,omitempty"`
	Config          types.JSONB    `gorm:"type:jsonb" json:"config,omitempty"`

	types.Timestamps
}

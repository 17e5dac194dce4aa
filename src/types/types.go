package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type SaleMode string

const (
	MODE_SERVICES SaleMode = "services"
	MODE_PRODUCTS SaleMode = "products"
	MODE_DIGITAL  SaleMode = "digital"
	MODE_BOOKING  SaleMode = "booking"
	MODE_TIP      SaleMode = "tip"
)

type OrderStatus string

const (
	ORDER_PENDING  OrderStatus = "pending"
	ORDER_PAID     OrderStatus = "paid"
	ORDER_REFUNDED OrderStatus = "refunded"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_CANCELED  BookingStatus = "cancelled"
)

type TipStatus string

const (
	TIP_PENDING TipStatus = "pending"
	TIP_PAID    TipStatus = "paid"
)

type OutboxStatus string

const (
	OUTBOX_PENDING OutboxStatus = "pending"
	OUTBOX_SENT    OutboxStatus = "sent"
	OUTBOX_FAILED  OutboxStatus = "failed"
)

type SitePlan string

const (
	PLAN_FREE      SitePlan = "free"
	PLAN_PRO       SitePlan = "pro"
	PLAN_UNLIMITED SitePlan = "unlimited"
)

// DayWindow is one weekday entry of the availability template. Start and End
// are wall-clock times in "HH:MM".
type DayWindow struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// AvailabilityTemplate is the weekly template slots are generated from. Days
// is keyed by "sun".."sat".
type AvailabilityTemplate struct {
	SlotMinutes int                  `json:"slot_minutes"`
	Days        map[string]DayWindow `json:"days"`
}

type CreateCheckoutRequestBody struct {
	Handle        string `json:"handle" binding:"required"`
	Mode          string `json:"mode" binding:"required,salemode"`
	ItemTitle     string `json:"item_title" binding:"required"`
	ItemPrice     string `json:"item_price" binding:"required"`
	Currency      string `json:"currency"`
	SlotID        uint   `json:"slot_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type GenerateSlotsRequestBody struct {
	Handle        string `json:"handle" binding:"required"`
	StartDate     string `json:"start_date"`
	DaysInAdvance int    `json:"days_in_advance"`
}

type UpsertSiteRequestBody struct {
	Handle       string `json:"handle" binding:"required"`
	ContactEmail string `json:"contact_email"`
	Config       JSONB  `json:"config" binding:"required"`
}

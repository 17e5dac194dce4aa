package models

import (
	"time"

	"qrshop/src/types"
)

type Slot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Handle    string    `gorm:"index" json:"handle"`
	StartTime time.Time `gorm:"index" json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsBooked  bool      `gorm:"default:false" json:"is_booked"`
	StaffID   *string   `json:"staff_id,omitempty"`

	types.Timestamps
}

package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"qrshop/src/config"
	"qrshop/src/db"
	"qrshop/src/lib"
	"qrshop/src/models"
	"qrshop/src/types"

	"gorm.io/gorm"
)

// slotHoldTTL bounds how long a checkout-in-progress keeps a slot off the
// market before payment confirms it.
const slotHoldTTL = 15 * time.Minute

var weekdayKeys = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

// BuildSlots walks the weekly template over [start, start+days) and emits the
// discrete slots. A final partial slot that would overrun the day window is
// dropped.
func BuildSlots(handle string, start time.Time, days int, tpl *types.AvailabilityTemplate) []models.Slot {
	slots := make([]models.Slot, 0)
	if tpl == nil || tpl.SlotMinutes <= 0 {
		return slots
	}
	step := time.Duration(tpl.SlotMinutes) * time.Minute
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for i := 0; i < days; i++ {
		d := day.AddDate(0, 0, i)
		window, ok := tpl.Days[weekdayKeys[d.Weekday()]]
		if !ok || !window.Enabled {
			continue
		}
		open, err := time.Parse(config.CLOCK_PARSE_FORMAT, window.Start)
		if err != nil {
			log.Printf("[slots] Bad start time [%s] for %s: %s\n", window.Start, handle, err.Error())
			continue
		}
		close, err := time.Parse(config.CLOCK_PARSE_FORMAT, window.End)
		if err != nil {
			log.Printf("[slots] Bad end time [%s] for %s: %s\n", window.End, handle, err.Error())
			continue
		}
		dayStart := time.Date(d.Year(), d.Month(), d.Day(), open.Hour(), open.Minute(), 0, 0, d.Location())
		dayEnd := time.Date(d.Year(), d.Month(), d.Day(), close.Hour(), close.Minute(), 0, 0, d.Location())
		for cur := dayStart; !cur.Add(step).After(dayEnd); cur = cur.Add(step) {
			slots = append(slots, models.Slot{
				Handle:    handle,
				StartTime: cur,
				EndTime:   cur.Add(step),
			})
		}
	}
	return slots
}

// GenerateSlots regenerates the slot inventory for handle within the range.
// Existing open slots whose start falls inside the range are deleted first;
// booked slots and slots outside the range are untouched, so confirmed
// bookings survive a template change.
func GenerateSlots(handle string, start time.Time, days int, tpl *types.AvailabilityTemplate) (int, error) {
	if days <= 0 {
		days = config.DEFAULT_DAYS_IN_ADVANCE
	}
	slots := BuildSlots(handle, start, days, tpl)
	rangeStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	rangeEnd := rangeStart.AddDate(0, 0, days)
	d := db.GetDb()
	err := d.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("handle = ? AND start_time >= ? AND start_time < ? AND is_booked = ?", handle, rangeStart, rangeEnd, false).
			Delete(&models.Slot{}).
			Error; err != nil {
			return err
		}
		if len(slots) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&slots, 100).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("[slots] Error regenerating slots for [%s]: %s\n", handle, err.Error())
		return 0, err
	}
	return len(slots), nil
}

// MarkSlotBooked flips is_booked. Setting true on an already-true row is a
// no-op, not an error.
func MarkSlotBooked(tx *gorm.DB, slotID uint) error {
	if tx == nil {
		tx = db.GetDb()
	}
	return tx.
		Model(&models.Slot{}).
		Where("id = ?", slotID).
		Update("is_booked", true).
		Error
}

// ReleaseSlot frees a slot again. Only an explicit owner cancel goes through
// here; the webhook never unbooks.
func ReleaseSlot(tx *gorm.DB, slotID uint) error {
	if tx == nil {
		tx = db.GetDb()
	}
	return tx.
		Model(&models.Slot{}).
		Where("id = ?", slotID).
		Update("is_booked", false).
		Error
}

var ErrSlotUnavailable = errors.New("slot is not available")

func slotHoldKey(slotID uint) string {
	return fmt.Sprintf("slot:hold:%d", slotID)
}

// HoldSlot places a short-lived reservation on a slot when a customer starts
// checkout, so two checkouts on the same open slot collide here instead of at
// payment confirmation. Without redis the hold degrades to a no-op and the
// first confirmed payment wins.
func HoldSlot(ctx context.Context, slotID uint, handle string) (bool, error) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return true, nil
	}
	ok, err := rd.SetNX(ctx, slotHoldKey(slotID), handle, slotHoldTTL).Result()
	if err != nil {
		log.Printf("[slots] Error placing hold on slot [%d]: %s\n", slotID, err.Error())
		return true, nil
	}
	return ok, nil
}

// ReleaseSlotHold drops the checkout hold, either on payment confirmation or
// on an abandoned session.
func ReleaseSlotHold(ctx context.Context, slotID uint) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	if err := rd.Del(ctx, slotHoldKey(slotID)).Err(); err != nil {
		log.Printf("[slots] Error releasing hold on slot [%d]: %s\n", slotID, err.Error())
	}
}

// FindOpenSlots lists the bookable inventory for a storefront.
func FindOpenSlots(handle string, from time.Time) ([]models.Slot, error) {
	var slots []models.Slot
	d := db.GetDb()
	err := d.
		Model(&models.Slot{}).
		Where("handle = ? AND is_booked = ? AND start_time > ?", handle, false, from).
		Order("start_time asc").
		Find(&slots).
		Error
	return slots, err
}

// SweepStalePendingBookings cancels pending bookings whose checkout hold has
// long expired, freeing their slots for regeneration. Runs on a schedule.
func SweepStalePendingBookings() {
	cutoff := time.Now().Add(-2 * slotHoldTTL)
	d := db.GetDb()
	res := d.
		Model(&models.Booking{}).
		Where("status = ? AND created_at < ?", types.BOOKING_PENDING, cutoff).
		Update("status", types.BOOKING_CANCELED)
	if res.Error != nil {
		log.Printf("[slots] Error sweeping stale bookings: %s\n", res.Error.Error())
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("[slots] Swept %d stale pending bookings\n", res.RowsAffected)
	}
}

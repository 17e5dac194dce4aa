package common

import (
	"log"
	"time"

	"qrshop/src/db"
	"qrshop/src/lib"
	"qrshop/src/models"
	"qrshop/src/types"

	"gorm.io/gorm"
)

const (
	OUTBOX_KIND_OWNER_EMAIL   = "owner_email"
	OUTBOX_KIND_SMS           = "sms"
	OUTBOX_KIND_DIGITAL_EMAIL = "digital_email"
	OUTBOX_KIND_BOOKING_EMAIL = "booking_email"
)

const outboxMaxAttempts = 5

// EnqueueOutbox durably records an owed notification. Sending happens on the
// drain schedule, never on the webhook's critical path. A failed enqueue is a
// warning, not a webhook failure.
func EnqueueOutbox(tx *gorm.DB, msg models.OutboxMessage, res *FulfillmentResult) {
	if tx == nil {
		tx = db.GetDb()
	}
	msg.Status = types.OUTBOX_PENDING
	if err := tx.Create(&msg).Error; err != nil {
		if res != nil {
			res.warn("could not enqueue %s to [%s]: %s", msg.Kind, msg.Recipient, err.Error())
		} else {
			log.Printf("[outbox] Error enqueueing %s to [%s]: %s\n", msg.Kind, msg.Recipient, err.Error())
		}
	}
}

// DrainOutbox sends a batch of pending messages. Each message carries its own
// attempt count; after outboxMaxAttempts it is parked as failed.
func DrainOutbox() {
	d := db.GetDb()
	var batch []models.OutboxMessage
	err := d.Model(&models.OutboxMessage{}).
		Where("status = ? AND attempts < ?", types.OUTBOX_PENDING, outboxMaxAttempts).
		Order("created_at asc").
		Limit(20).
		Find(&batch).
		Error
	if err != nil {
		log.Printf("[outbox] Error loading batch: %s\n", err.Error())
		return
	}
	for _, msg := range batch {
		sendErr := Dispatch(&msg)
		if sendErr == nil {
			if err := d.Model(&models.OutboxMessage{}).
				Where("id = ?", msg.ID).
				Updates(map[string]any{"status": types.OUTBOX_SENT, "attempts": msg.Attempts + 1}).
				Error; err != nil {
				log.Printf("[outbox] Error marking [%s] sent: %s\n", msg.ID, err.Error())
			}
			continue
		}
		errMsg := sendErr.Error()
		updates := map[string]any{
			"attempts":   msg.Attempts + 1,
			"last_error": errMsg,
		}
		if msg.Attempts+1 >= outboxMaxAttempts {
			updates["status"] = types.OUTBOX_FAILED
		}
		if err := d.Model(&models.OutboxMessage{}).
			Where("id = ?", msg.ID).
			Updates(updates).
			Error; err != nil {
			log.Printf("[outbox] Error recording failure for [%s]: %s\n", msg.ID, err.Error())
		}
	}
}

// StartOutboxWorker schedules the periodic drain plus the stale-booking
// sweeper.
func StartOutboxWorker() {
	if _, err := lib.CreateCronJob(DrainOutbox, 30*time.Second); err != nil {
		log.Printf("[outbox] Error scheduling drain job: %s\n", err.Error())
	}
	if _, err := lib.CreateCronJob(SweepStalePendingBookings, 10*time.Minute); err != nil {
		log.Printf("[outbox] Error scheduling sweep job: %s\n", err.Error())
	}
}

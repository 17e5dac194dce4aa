package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"qrshop/src/db"
	"qrshop/src/models"
	"qrshop/src/types"
	"qrshop/src/utils"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// FulfillmentResult is the webhook acknowledgment body. The processor only
// needs the 200; the fields are for operators.
type FulfillmentResult struct {
	Handle       string   `json:"handle"`
	WroteBooking bool     `json:"wroteBooking"`
	WroteOrder   bool     `json:"wroteOrder"`
	WroteTip     bool     `json:"wroteTip"`
	Warnings     []string `json:"warnings"`
}

func (r *FulfillmentResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[fulfill] %s\n", msg)
	r.Warnings = append(r.Warnings, msg)
}

// FulfillCheckoutSession runs the paid-session state machine: whichever of
// order/booking/tip the metadata names is moved to its terminal state, the
// booking's slot is marked, and owed notifications are written to the outbox.
// The three transitions are independent; one failing never blocks another.
// Metadata with none of the ids present degrades to an acknowledged no-op.
func FulfillCheckoutSession(ctx context.Context, cs *stripe.CheckoutSession) *FulfillmentResult {
	md := cs.Metadata
	res := &FulfillmentResult{
		Handle:   md["handle"],
		Warnings: make([]string, 0),
	}

	var paymentIntentID string
	if cs.PaymentIntent != nil {
		paymentIntentID = cs.PaymentIntent.ID
	}

	if id, ok := md["booking_id"]; ok && id != "" {
		fulfillBooking(ctx, res, cs, id, paymentIntentID)
	}
	if id, ok := md["order_id"]; ok && id != "" {
		fulfillOrder(ctx, res, cs, id, paymentIntentID)
	}
	if id, ok := md["tip_id"]; ok && id != "" {
		fulfillTip(ctx, res, cs, id)
	}
	if !res.WroteBooking && !res.WroteOrder && !res.WroteTip && len(res.Warnings) == 0 {
		log.Printf("[fulfill] Session [%s] carried no fulfillable ids\n", cs.ID)
	}

	if res.WroteBooking || res.WroteOrder || res.WroteTip {
		enqueueOwnerSummary(res, md)
	}
	return res
}

func fulfillBooking(ctx context.Context, res *FulfillmentResult, cs *stripe.CheckoutSession, rawID string, paymentIntentID string) {
	bookingID, err := uuid.Parse(rawID)
	if err != nil {
		res.warn("booking id [%s] is not a valid id", rawID)
		return
	}
	d := db.GetDb()
	var booking models.Booking
	// Filtered by id and handle both, against cross-tenant id collisions.
	err = d.Model(&models.Booking{}).
		Where("id = ? AND handle = ?", bookingID, res.Handle).
		Take(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res.warn("booking [%s] not found for handle [%s]", rawID, res.Handle)
		} else {
			res.warn("error loading booking [%s]: %s", rawID, err.Error())
		}
		return
	}
	if booking.Status == types.BOOKING_CONFIRMED {
		// Replay of a different event for the same booking; nothing to do
		// and no notifications owed.
		log.Printf("[fulfill] Booking [%s] already confirmed\n", rawID)
		return
	}
	if booking.Status != types.BOOKING_PENDING {
		// Only pending rows move forward. A cancelled booking stays
		// cancelled even when its payment lands late; the slot may already
		// belong to someone else.
		res.warn("booking [%s] is %s, not confirming", rawID, booking.Status)
		return
	}
	updates := models.Booking{
		Status:            types.BOOKING_CONFIRMED,
		CheckoutSessionId: &cs.ID,
	}
	if paymentIntentID != "" {
		updates.PaymentIntentId = &paymentIntentID
	}
	err = d.Model(&models.Booking{}).
		Where("id = ? AND handle = ?", bookingID, res.Handle).
		Updates(&updates).
		Error
	if err != nil {
		res.warn("error confirming booking [%s]: %s", rawID, err.Error())
		return
	}
	res.WroteBooking = true

	// Slot bookkeeping is best-effort; the confirmed booking is the
	// higher-priority record and stays confirmed either way.
	if err := MarkSlotBooked(nil, booking.SlotID); err != nil {
		res.warn("booking [%s] confirmed but slot [%d] not marked: %s", rawID, booking.SlotID, err.Error())
	}
	ReleaseSlotHold(ctx, booking.SlotID)

	if booking.CustomerPhone != nil && utils.IsE164Phone(*booking.CustomerPhone) {
		EnqueueOutbox(nil, models.OutboxMessage{
			Kind:      OUTBOX_KIND_SMS,
			Recipient: *booking.CustomerPhone,
			Payload: types.JSONB{
				"message": fmt.Sprintf("Your booking with %s is confirmed.", res.Handle),
			},
		}, res)
	}
	if booking.CustomerEmail != nil && *booking.CustomerEmail != "" {
		payload := types.JSONB{
			"handle":     res.Handle,
			"booking_id": booking.ID.String(),
			"slot_id":    booking.SlotID,
		}
		var slot models.Slot
		if err := d.Where("id = ?", booking.SlotID).Take(&slot).Error; err == nil {
			payload["start_time"] = slot.StartTime.Format(time.RFC3339)
			payload["end_time"] = slot.EndTime.Format(time.RFC3339)
		}
		EnqueueOutbox(nil, models.OutboxMessage{
			Kind:      OUTBOX_KIND_BOOKING_EMAIL,
			Recipient: *booking.CustomerEmail,
			Subject:   fmt.Sprintf("Booking confirmed with %s", res.Handle),
			Payload:   payload,
		}, res)
	}
}

func fulfillOrder(ctx context.Context, res *FulfillmentResult, cs *stripe.CheckoutSession, rawID string, paymentIntentID string) {
	orderID, err := uuid.Parse(rawID)
	if err != nil {
		res.warn("order id [%s] is not a valid id", rawID)
		return
	}
	d := db.GetDb()
	var order models.Order
	err = d.Model(&models.Order{}).
		Where("id = ? AND handle = ?", orderID, res.Handle).
		Take(&order).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res.warn("order [%s] not found for handle [%s]", rawID, res.Handle)
		} else {
			res.warn("error loading order [%s]: %s", rawID, err.Error())
		}
		return
	}
	if order.Status == types.ORDER_PAID {
		log.Printf("[fulfill] Order [%s] already paid\n", rawID)
		return
	}
	if order.Status != types.ORDER_PENDING {
		// Cancelled and refunded orders are terminal; a late payment event
		// must not flip them back to paid.
		res.warn("order [%s] is %s, not marking paid", rawID, order.Status)
		return
	}
	now := time.Now()
	updates := map[string]any{
		"status":              types.ORDER_PAID,
		"paid":                true,
		"paid_at":             now,
		"checkout_session_id": cs.ID,
	}
	if paymentIntentID != "" {
		updates["payment_intent_id"] = paymentIntentID
	}
	err = d.Model(&models.Order{}).
		Where("id = ? AND handle = ?", orderID, res.Handle).
		Updates(updates).
		Error
	if err != nil {
		res.warn("error marking order [%s] paid: %s", rawID, err.Error())
		return
	}
	res.WroteOrder = true

	customerEmail := ""
	if order.CustomerEmail != nil {
		customerEmail = *order.CustomerEmail
	}
	if customerEmail == "" && cs.CustomerDetails != nil {
		customerEmail = cs.CustomerDetails.Email
	}
	if order.Mode == types.MODE_DIGITAL && customerEmail != "" {
		enqueueDigitalDelivery(res, &order, customerEmail)
	}
	if order.CustomerPhone != nil && utils.IsE164Phone(*order.CustomerPhone) {
		EnqueueOutbox(nil, models.OutboxMessage{
			Kind:      OUTBOX_KIND_SMS,
			Recipient: *order.CustomerPhone,
			Payload: types.JSONB{
				"message": fmt.Sprintf("Receipt from %s: %s, %s.", res.Handle, order.ItemTitle, formatAmount(order.AmountCents, order.Currency)),
			},
		}, res)
	}
}

func fulfillTip(ctx context.Context, res *FulfillmentResult, cs *stripe.CheckoutSession, rawID string) {
	tipID, err := uuid.Parse(rawID)
	if err != nil {
		res.warn("tip id [%s] is not a valid id", rawID)
		return
	}
	d := db.GetDb()
	var tip models.Tip
	err = d.Model(&models.Tip{}).
		Where("id = ? AND handle = ?", tipID, res.Handle).
		Take(&tip).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res.warn("tip [%s] not found for handle [%s]", rawID, res.Handle)
		} else {
			res.warn("error loading tip [%s]: %s", rawID, err.Error())
		}
		return
	}
	if tip.Status == types.TIP_PAID {
		log.Printf("[fulfill] Tip [%s] already paid\n", rawID)
		return
	}
	if tip.Status != types.TIP_PENDING {
		res.warn("tip [%s] is %s, not marking paid", rawID, tip.Status)
		return
	}
	err = d.Model(&models.Tip{}).
		Where("id = ? AND handle = ?", tipID, res.Handle).
		Updates(map[string]any{
			"status":              types.TIP_PAID,
			"checkout_session_id": cs.ID,
		}).
		Error
	if err != nil {
		res.warn("error marking tip [%s] paid: %s", rawID, err.Error())
		return
	}
	res.WroteTip = true

	if tip.TipperPhone != nil && utils.IsE164Phone(*tip.TipperPhone) {
		EnqueueOutbox(nil, models.OutboxMessage{
			Kind:      OUTBOX_KIND_SMS,
			Recipient: *tip.TipperPhone,
			Payload: types.JSONB{
				"message": fmt.Sprintf("Thanks for tipping %s!", res.Handle),
			},
		}, res)
	}
}

// enqueueDigitalDelivery collects the purchased item's file links out of the
// site catalog and owes the customer a download email.
func enqueueDigitalDelivery(res *FulfillmentResult, order *models.Order, email string) {
	links := digitalFileLinks(order.Handle, order.ItemTitle)
	if len(links) == 0 {
		res.warn("digital order [%s] has no file links configured", order.ID)
		return
	}
	EnqueueOutbox(nil, models.OutboxMessage{
		Kind:      OUTBOX_KIND_DIGITAL_EMAIL,
		Recipient: email,
		Subject:   fmt.Sprintf("Your download: %s", order.ItemTitle),
		Payload: types.JSONB{
			"handle": order.Handle,
			"title":  order.ItemTitle,
			"links":  links,
		},
	}, res)
}

// enqueueOwnerSummary owes the seller a heads-up email, resolved through the
// tenant config. A missing tenant or address fails soft; the child rows stay
// fulfilled regardless.
func enqueueOwnerSummary(res *FulfillmentResult, md map[string]string) {
	site, err := FindSiteByHandle(res.Handle)
	if err != nil {
		res.warn("owner email skipped, no site for handle [%s]", res.Handle)
		return
	}
	to := OwnerNotifyEmail(site)
	if to == "" {
		log.Printf("[fulfill] Site [%s] has no notification email configured\n", res.Handle)
		return
	}
	EnqueueOutbox(nil, models.OutboxMessage{
		Kind:      OUTBOX_KIND_OWNER_EMAIL,
		Recipient: to,
		Subject:   fmt.Sprintf("New sale on %s", res.Handle),
		Payload: types.JSONB{
			"handle":       res.Handle,
			"mode":         md["mode"],
			"item_title":   md["item_title"],
			"amount_cents": md["amount_cents"],
		},
	}, res)
}

func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "usd"
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"qrshop/src/db"
	"qrshop/src/lib"
	"qrshop/src/models"
	"qrshop/src/types"
	"qrshop/src/utils"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

var (
	ErrInvalidHandle      = errors.New("handle is missing or invalid")
	ErrSellerNotOnboarded = errors.New("seller has not completed payment setup")
)

type CheckoutRequest struct {
	Handle        string
	Mode          types.SaleMode
	ItemTitle     string
	ItemPrice     string
	Currency      string
	SlotID        uint
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type CheckoutResult struct {
	URL     string `json:"url"`
	OrderID string `json:"orderId"`
}

func checkoutCacheKey(handle, title string, amount int64) string {
	return fmt.Sprintf("checkout:%s:%s:%d", handle, title, amount)
}

// CreateCheckout builds a hosted checkout session for one sale. The pending
// row is written before the session is created: a crash in between leaves an
// orphan pending row, never a paid-but-unrecorded purchase.
func CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	handle := utils.NormalizeHandle(req.Handle)
	if handle == "" {
		return nil, ErrInvalidHandle
	}
	amountCents, err := utils.ParsePriceCents(req.ItemPrice)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	site, err := FindSiteByHandle(handle)
	if err != nil {
		return nil, ErrSiteNotFound
	}
	if site.StripeAccountID == nil || !utils.IsConnectedAccountID(*site.StripeAccountID) {
		return nil, ErrSellerNotOnboarded
	}
	accountID := *site.StripeAccountID

	sc := lib.GetStripeClient()
	d := db.GetDb()

	// Double-click guard: an identical pending order that already has a
	// session gets the original session back instead of a duplicate row.
	if req.Mode != types.MODE_BOOKING && req.Mode != types.MODE_TIP {
		if res := reusePendingOrder(ctx, d, sc, handle, req.ItemTitle, amountCents); res != nil {
			return res, nil
		}
	}

	feePercent := 0.0
	if site.Plan != types.PLAN_UNLIMITED {
		if v, err := strconv.ParseFloat(os.Getenv("PLATFORM_FEE_PERCENT"), 64); err == nil {
			feePercent = v
		}
	}
	feeCents := utils.PlatformFeeCents(amountCents, feePercent)

	metadata := map[string]string{
		"handle":       handle,
		"mode":         string(req.Mode),
		"item_title":   req.ItemTitle,
		"amount_cents": strconv.FormatInt(amountCents, 10),
	}

	var rowID uuid.UUID
	var writeSessionID func(sessionID string) error
	switch req.Mode {
	case types.MODE_BOOKING:
		booking, err := createPendingBooking(ctx, d, handle, req)
		if err != nil {
			return nil, err
		}
		rowID = booking.ID
		metadata["booking_id"] = booking.ID.String()
		writeSessionID = func(sessionID string) error {
			return d.Model(&models.Booking{}).
				Where("id = ?", booking.ID).
				Update("checkout_session_id", sessionID).
				Error
		}
	case types.MODE_TIP:
		tip := models.Tip{
			Handle:      handle,
			AmountCents: amountCents,
			Currency:    currency,
			Status:      types.TIP_PENDING,
		}
		if req.CustomerName != "" {
			tip.TipperName = &req.CustomerName
		}
		if req.CustomerEmail != "" {
			tip.TipperEmail = &req.CustomerEmail
		}
		if req.CustomerPhone != "" {
			tip.TipperPhone = &req.CustomerPhone
		}
		if err := d.Create(&tip).Error; err != nil {
			return nil, err
		}
		rowID = tip.ID
		metadata["tip_id"] = tip.ID.String()
		writeSessionID = func(sessionID string) error {
			return d.Model(&models.Tip{}).
				Where("id = ?", tip.ID).
				Update("checkout_session_id", sessionID).
				Error
		}
	default:
		order := models.Order{
			Handle:      handle,
			Mode:        req.Mode,
			ItemTitle:   req.ItemTitle,
			AmountCents: amountCents,
			Currency:    currency,
			Status:      types.ORDER_PENDING,
		}
		if req.CustomerName != "" {
			order.CustomerName = &req.CustomerName
		}
		if req.CustomerEmail != "" {
			order.CustomerEmail = &req.CustomerEmail
		}
		if req.CustomerPhone != "" {
			order.CustomerPhone = &req.CustomerPhone
		}
		if err := d.Create(&order).Error; err != nil {
			return nil, err
		}
		rowID = order.ID
		metadata["order_id"] = order.ID.String()
		writeSessionID = func(sessionID string) error {
			return d.Model(&models.Order{}).
				Where("id = ?", order.ID).
				Update("checkout_session_id", sessionID).
				Error
		}
	}

	successUrl := fmt.Sprintf("%s/u/%s/thanks?session_id={CHECKOUT_SESSION_ID}", os.Getenv("APP_HOST"), handle)
	piParams := &stripe.CheckoutSessionCreatePaymentIntentDataParams{
		TransferData: &stripe.CheckoutSessionCreatePaymentIntentDataTransferDataParams{
			Destination: stripe.String(accountID),
		},
	}
	if feeCents > 0 {
		piParams.ApplicationFeeAmount = stripe.Int64(feeCents)
	}
	for k, v := range metadata {
		piParams.AddMetadata(k, v)
	}
	createParams := stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(successUrl),
		UIMode:            stripe.String("hosted"),
		Mode:              stripe.String("payment"),
		PaymentIntentData: piParams,
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ItemTitle),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
	}
	if req.CustomerEmail != "" {
		createParams.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	checkoutSession, err := sc.V1CheckoutSessions.Create(ctx, &createParams)
	if err != nil {
		// The pending row stays behind with no session id. It can never be
		// paid and is safe to garbage-collect; retrying here would risk a
		// duplicate charge.
		log.Printf("[checkout] Error creating session for [%s]: %s\n", handle, err.Error())
		if req.Mode == types.MODE_BOOKING {
			ReleaseSlotHold(ctx, req.SlotID)
		}
		return nil, err
	}
	log.Printf("[checkout] CheckoutSessionID: %s\n", checkoutSession.ID)

	if err := writeSessionID(checkoutSession.ID); err != nil {
		// The webhook's dedupe-by-session-id fallback covers this gap.
		log.Printf("[checkout] Error storing session id on row [%s]: %s\n", rowID, err.Error())
	}
	if rd := lib.GetRedisClient(); rd != nil {
		key := checkoutCacheKey(handle, req.ItemTitle, amountCents)
		if err := rd.SetEx(ctx, key, checkoutSession.ID, 10*time.Minute).Err(); err != nil {
			log.Printf("[checkout] Error caching session [%s]: %s\n", checkoutSession.ID, err.Error())
		}
	}

	return &CheckoutResult{URL: checkoutSession.URL, OrderID: rowID.String()}, nil
}

func createPendingBooking(ctx context.Context, d *gorm.DB, handle string, req *CheckoutRequest) (*models.Booking, error) {
	if req.SlotID == 0 {
		return nil, ErrSlotUnavailable
	}
	var slot models.Slot
	err := d.Model(&models.Slot{}).
		Where("id = ? AND handle = ?", req.SlotID, handle).
		Take(&slot).
		Error
	if err != nil {
		return nil, ErrSlotUnavailable
	}
	if slot.IsBooked {
		return nil, ErrSlotUnavailable
	}
	held, err := HoldSlot(ctx, req.SlotID, handle)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, ErrSlotUnavailable
	}
	booking := models.Booking{
		Handle: handle,
		SlotID: req.SlotID,
		Status: types.BOOKING_PENDING,
	}
	if req.CustomerName != "" {
		booking.CustomerName = &req.CustomerName
	}
	if req.CustomerEmail != "" {
		booking.CustomerEmail = &req.CustomerEmail
	}
	if req.CustomerPhone != "" {
		booking.CustomerPhone = &req.CustomerPhone
	}
	if err := d.Create(&booking).Error; err != nil {
		ReleaseSlotHold(ctx, req.SlotID)
		return nil, err
	}
	return &booking, nil
}

// reusePendingOrder re-fetches the session of an identical pending order, so
// rapid duplicate submissions converge on a single session and row. The redis
// cache written at session creation is checked first; a miss falls through to
// the database.
func reusePendingOrder(ctx context.Context, d *gorm.DB, sc *stripe.Client, handle, title string, amountCents int64) *CheckoutResult {
	var existing models.Order
	if rd := lib.GetRedisClient(); rd != nil {
		sessionID, err := rd.Get(ctx, checkoutCacheKey(handle, title, amountCents)).Result()
		if err == nil && sessionID != "" {
			err = d.Model(&models.Order{}).
				Where("checkout_session_id = ? AND status = ?", sessionID, types.ORDER_PENDING).
				Take(&existing).
				Error
			if err == nil {
				if res := reuseIfOpen(ctx, sc, sessionID, &existing); res != nil {
					return res
				}
			}
		}
	}
	err := d.Model(&models.Order{}).
		Where("handle = ? AND item_title = ? AND amount_cents = ? AND status = ?",
			handle, title, amountCents, types.ORDER_PENDING).
		Where("checkout_session_id IS NOT NULL").
		Order("created_at desc").
		Take(&existing).
		Error
	if err != nil {
		return nil
	}
	return reuseIfOpen(ctx, sc, *existing.CheckoutSessionId, &existing)
}

func reuseIfOpen(ctx context.Context, sc *stripe.Client, sessionID string, order *models.Order) *CheckoutResult {
	cs, err := sc.V1CheckoutSessions.Retrieve(ctx, sessionID, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		log.Printf("[checkout] Error re-fetching session [%s]: %s\n", sessionID, err.Error())
		return nil
	}
	if cs.Status != stripe.CheckoutSessionStatusOpen {
		return nil
	}
	log.Printf("[checkout] Reusing open session [%s] for [%s]\n", cs.ID, order.Handle)
	return &CheckoutResult{URL: cs.URL, OrderID: order.ID.String()}
}

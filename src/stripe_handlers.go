package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"qrshop/src/common"
	"qrshop/src/db"
	"qrshop/src/middlewares"
	"qrshop/src/models"
	"qrshop/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		// Signature verification is the sole trust boundary and the only
		// condition that may ask the processor to retry.
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s %s\n", event.Type, event.ID)

		switch event.Type {
		case "checkout.session.completed":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				ctx.JSON(http.StatusOK, gin.H{"ok": true, "received": true, "warnings": []string{"unparseable session payload"}})
				return
			}
			// Dedupe by event id; the unique key is the only concurrency
			// control across redeliveries. A missing dedupe table must not
			// block payment processing.
			d := db.GetDb()
			if err := d.Create(&models.WebhookEvent{ID: event.ID}).Error; err != nil {
				if isDuplicateKeyErr(err) {
					log.Printf("[StripeEvent] Duplicate delivery of [%s], skipping\n", event.ID)
					ctx.JSON(http.StatusOK, gin.H{"ok": true, "received": true, "duplicate": true})
					return
				}
				log.Printf("[StripeEvent] Dedupe unavailable for [%s]: %s\n", event.ID, err.Error())
			}
			res := common.FulfillCheckoutSession(ctx.Request.Context(), &cs)
			ctx.JSON(http.StatusOK, gin.H{
				"ok":           true,
				"received":     true,
				"handle":       res.Handle,
				"wroteBooking": res.WroteBooking,
				"wroteOrder":   res.WroteOrder,
				"wroteTip":     res.WroteTip,
				"warnings":     res.Warnings,
			})
		case "account.updated":
			var acc stripe.Account
			if err := json.Unmarshal(event.Data.Raw, &acc); err != nil {
				log.Printf("[Stripe] Error parsing Account: %s\n", err.Error())
				ctx.JSON(http.StatusOK, gin.H{"ok": true, "received": true})
				return
			}
			completed := len(acc.Requirements.Errors) == 0 &&
				acc.ChargesEnabled &&
				acc.PayoutsEnabled &&
				acc.DetailsSubmitted
			if err := common.UpdateSiteAccountStatus(acc.ID, completed && acc.ChargesEnabled); err != nil {
				log.Printf("[StripeEvent] Error updating account status for [%s]: %s\n", acc.ID, err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"ok": true, "received": true})
		default:
			// Everything else is acknowledged and ignored.
			ctx.JSON(http.StatusOK, gin.H{"ok": true, "received": true})
		}
	})

	stripeAuth := apiv1.Group("/stripe")
	stripeAuth.Use(middlewares.AuthMiddleware)
	stripeAuth.
		POST("/connect", func(ctx *gin.Context) {
			var body struct {
				Handle string `json:"handle" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			handle := utils.NormalizeHandle(body.Handle)
			userId := ctx.GetString("user_id")
			site, err := common.FindSiteByHandle(handle)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
				return
			}
			if site.OwnerUserID != "" && site.OwnerUserID != userId {
				ctx.Status(http.StatusForbidden)
				return
			}
			if site.StripeAccountID != nil && utils.IsConnectedAccountID(*site.StripeAccountID) {
				ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"account_id": *site.StripeAccountID}})
				return
			}
			email := site.ContactEmail
			if email == "" {
				email = ctx.GetString("email")
			}
			acc, onboardingURL, err := utils.CreateConnectAccount(ctx.Request.Context(), handle, email)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not create payment account"})
				return
			}
			if err := common.SetSiteAccountID(handle, acc.ID); err != nil {
				log.Printf("Error storing account id for [%s]: %s\n", handle, err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"account_id": acc.ID, "onboarding_url": onboardingURL}})
		}).
		GET("/account", func(ctx *gin.Context) {
			handle := utils.NormalizeHandle(ctx.Query("handle"))
			userId := ctx.GetString("user_id")
			site, err := common.FindSiteByHandle(handle)
			if err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			if site.OwnerUserID != "" && site.OwnerUserID != userId {
				ctx.Status(http.StatusForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"account_id":      site.StripeAccountID,
				"charges_enabled": site.ChargesEnabled,
			}})
		})
	return apiv1
}

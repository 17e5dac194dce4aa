package main

import (
	"errors"
	"log"
	"net/http"

	"qrshop/src/common"
	"qrshop/src/types"
	"qrshop/src/utils"

	"github.com/gin-gonic/gin"
)

func checkoutRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/checkout", func(ctx *gin.Context) {
		var body types.CreateCheckoutRequestBody
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_FIELDS", "detail": err.Error()})
			return
		}
		res, err := common.CreateCheckout(ctx.Request.Context(), &common.CheckoutRequest{
			Handle:        body.Handle,
			Mode:          types.SaleMode(body.Mode),
			ItemTitle:     body.ItemTitle,
			ItemPrice:     body.ItemPrice,
			Currency:      body.Currency,
			SlotID:        body.SlotID,
			CustomerName:  body.CustomerName,
			CustomerEmail: body.CustomerEmail,
			CustomerPhone: body.CustomerPhone,
		})
		if err != nil {
			switch {
			case errors.Is(err, common.ErrInvalidHandle):
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_HANDLE"})
			case errors.Is(err, utils.ErrInvalidPrice):
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_PRICE"})
			case errors.Is(err, common.ErrSiteNotFound):
				ctx.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
			case errors.Is(err, common.ErrSellerNotOnboarded):
				// Distinct so the storefront can show "unavailable" instead
				// of a generic failure.
				ctx.JSON(http.StatusConflict, gin.H{"error": "SELLER_NOT_ONBOARDED"})
			case errors.Is(err, common.ErrSlotUnavailable):
				ctx.JSON(http.StatusConflict, gin.H{"error": "SLOT_UNAVAILABLE"})
			default:
				log.Printf("[checkout] Error: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "CHECKOUT_FAILED"})
			}
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"ok": true, "url": res.URL, "orderId": res.OrderID})
	})
	return apiv1
}

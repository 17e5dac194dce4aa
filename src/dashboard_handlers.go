package main

import (
	"net/http"

	"qrshop/src/common"
	"qrshop/src/db"
	"qrshop/src/models"

	"github.com/gin-gonic/gin"
)

// dashboardRoutes is the read-only fan-in for the owner dashboard. The
// owner-id/email filter applied through FindSitesByOwner is the only
// isolation boundary over bookings/orders/tips, so every query below scopes
// to the resolved handle set.
func dashboardRoutes(g *gin.RouterGroup) *gin.RouterGroup {
	g.GET("/dashboard", func(ctx *gin.Context) {
		userId := ctx.GetString("user_id")
		email := ctx.GetString("email")
		sites := common.FindSitesByOwner(userId, email)
		if len(sites) == 0 {
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"sites":    []models.Site{},
				"bookings": []models.Booking{},
				"orders":   []models.Order{},
				"tips":     []models.Tip{},
			}})
			return
		}
		handles := make([]string, 0, len(sites))
		for _, s := range sites {
			handles = append(handles, s.Handle)
		}

		d := db.GetDb()
		var bookings []models.Booking
		if err := d.
			Model(&models.Booking{}).
			Where("handle IN ?", handles).
			Preload("Slot").
			Order("created_at desc").
			Limit(50).
			Find(&bookings).
			Error; err != nil {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		var orders []models.Order
		if err := d.
			Model(&models.Order{}).
			Where("handle IN ?", handles).
			Order("created_at desc").
			Limit(50).
			Find(&orders).
			Error; err != nil {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		var tips []models.Tip
		if err := d.
			Model(&models.Tip{}).
			Where("handle IN ?", handles).
			Order("created_at desc").
			Limit(50).
			Find(&tips).
			Error; err != nil {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
			"sites":    sites,
			"bookings": bookings,
			"orders":   orders,
			"tips":     tips,
		}})
	})
	return g
}

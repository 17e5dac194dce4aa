package main

import (
	"errors"
	"log"
	"net/http"

	"qrshop/src/common"
	"qrshop/src/db"
	"qrshop/src/models"
	"qrshop/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings/:id", func(ctx *gin.Context) {
			id, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetString("user_id")
			email := ctx.GetString("email")
			d := db.GetDb()
			var booking models.Booking
			if err := d.
				Model(&models.Booking{}).
				Where("id = ?", id).
				Preload("Slot").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
				return
			}
			if !ownsHandle(userId, email, booking.Handle) {
				ctx.Status(http.StatusForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			id, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetString("user_id")
			email := ctx.GetString("email")
			d := db.GetDb()
			err = d.Transaction(func(tx *gorm.DB) error {
				var booking models.Booking
				if err := tx.
					Model(&models.Booking{}).
					Where("id = ?", id).
					First(&booking).
					Error; err != nil {
					return err
				}
				if !ownsHandle(userId, email, booking.Handle) {
					return errors.New("not the owner of this booking")
				}
				if booking.Status == types.BOOKING_CANCELED {
					return nil
				}
				if err := tx.
					Model(&models.Booking{}).
					Where("id = ?", id).
					Update("status", types.BOOKING_CANCELED).
					Error; err != nil {
					return err
				}
				// Owner cancel is the only path that frees a booked slot.
				if err := common.ReleaseSlot(tx, booking.SlotID); err != nil {
					return err
				}
				return nil
			})
			if err != nil {
				log.Printf("Could not cancel booking [%s]: %s\n", id, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Error while processing request"})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func ownsHandle(userId string, email string, handle string) bool {
	for _, s := range common.FindSitesByOwner(userId, email) {
		if s.Handle == handle {
			return true
		}
	}
	return false
}

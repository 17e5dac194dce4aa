package main

import (
	"log"
	"net/http"
	"time"

	"qrshop/src/common"
	"qrshop/src/config"
	"qrshop/src/middlewares"
	"qrshop/src/types"
	"qrshop/src/utils"

	"github.com/gin-gonic/gin"
)

func slotRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	slotsAuth := apiv1.Group("/slots")
	slotsAuth.Use(middlewares.AuthMiddleware)
	slotsAuth.
		POST("/generate", func(ctx *gin.Context) {
			var body types.GenerateSlotsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			handle := utils.NormalizeHandle(body.Handle)
			if handle == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_HANDLE"})
				return
			}
			site, err := common.FindSiteByHandle(handle)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
				return
			}
			// Regeneration rewrites inventory; only the owner may run it.
			userId := ctx.GetString("user_id")
			if site.OwnerUserID != "" && site.OwnerUserID != userId {
				ctx.Status(http.StatusForbidden)
				return
			}
			tpl, err := common.SiteAvailability(site)
			if err != nil {
				log.Printf("[slots] No availability for [%s]: %s\n", handle, err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "NO_AVAILABILITY"})
				return
			}
			start := time.Now()
			if body.StartDate != "" {
				parsed, err := time.Parse(config.DATE_PARSE_FORMAT, body.StartDate)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_DATE"})
					return
				}
				start = parsed
			}
			count, err := common.GenerateSlots(handle, start, body.DaysInAdvance, tpl)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "GENERATION_FAILED"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"ok": true, "slotsCount": count})
		})
	apiv1.
		GET("/slots", func(ctx *gin.Context) {
			handle := utils.NormalizeHandle(ctx.Query("handle"))
			if handle == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_HANDLE"})
				return
			}
			slots, err := common.FindOpenSlots(handle, time.Now())
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": slots, "count": len(slots)})
		})
	return apiv1
}

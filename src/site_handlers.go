package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path"

	"qrshop/src/common"
	"qrshop/src/config"
	"qrshop/src/middlewares"
	"qrshop/src/types"
	"qrshop/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/yeqown/go-qrcode"
)

func siteRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/sites", func(ctx *gin.Context) {
			handle := utils.NormalizeHandle(ctx.Query("handle"))
			if handle == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_HANDLE"})
				return
			}
			site, err := common.FindSiteByHandle(handle)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"handle": site.Handle,
				"config": site.Config,
				"live":   site.StripeAccountID != nil && site.ChargesEnabled,
			}})
		}).
		GET("/sites/:handle/qr", func(ctx *gin.Context) {
			handle := utils.NormalizeHandle(ctx.Param("handle"))
			if handle == "" {
				ctx.Status(http.StatusBadRequest)
				return
			}
			if _, err := common.FindSiteByHandle(handle); err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			url := fmt.Sprintf("https://%s.%s", handle, config.BaseDomain())
			qrc, err := qrcode.New(url)
			if err != nil {
				log.Printf("Error building qrcode for [%s]: %s\n", handle, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			tempdir := os.Getenv("TEMP_DIR")
			if tempdir == "" {
				tempdir = os.TempDir()
			}
			filepath := path.Join(tempdir, fmt.Sprintf("qr-%s.jpeg", handle))
			if err := qrc.Save(filepath); err != nil {
				log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.FileAttachment(filepath, fmt.Sprintf("%s-qr.jpeg", handle))
		})

	// Storefront page loads arrive on the tenant subdomain, so the
	// handle comes from the Host header rather than the query string.
	store := apiv1.Group("/storefront")
	store.Use(middlewares.TenantResolver)
	store.GET("", func(ctx *gin.Context) {
		handle := ctx.GetString("handle")
		if handle == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_HANDLE"})
			return
		}
		site, err := common.FindSiteByHandle(handle)
		if err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
			"handle": site.Handle,
			"config": site.Config,
			"live":   site.StripeAccountID != nil && site.ChargesEnabled,
		}})
	})

	authed := apiv1.Group("/sites")
	authed.Use(middlewares.AuthMiddleware)
	authed.POST("", func(ctx *gin.Context) {
		var body types.UpsertSiteRequestBody
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		handle := utils.NormalizeHandle(body.Handle)
		if handle == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_HANDLE"})
			return
		}
		userId := ctx.GetString("user_id")
		site, err := common.UpsertSite(handle, userId, body.ContactEmail, body.Config)
		if err != nil {
			log.Printf("Error upserting site [%s]: %s\n", handle, err.Error())
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": site})
	})
	return apiv1
}

package middlewares

import (
	"qrshop/src/config"
	"qrshop/src/utils"

	"github.com/gin-gonic/gin"
)

// TenantResolver derives the tenant handle for the request, subdomain first,
// `/u/:handle` path second. An empty handle stays unset; downstream handlers
// treat that as not-found, never as the main site.
func TenantResolver(ctx *gin.Context) {
	base := config.BaseDomain()
	if handle := utils.HandleFromHost(ctx.Request.Host, base); handle != "" {
		ctx.Set("handle", handle)
		return
	}
	if raw := ctx.Param("handle"); raw != "" {
		if handle := utils.NormalizeHandle(raw); handle != "" {
			ctx.Set("handle", handle)
		}
	}
}

package middlewares

import (
	"log"
	"os"
	"strings"

	"qrshop/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// AuthMiddleware validates the bearer token issued by the hosted auth
// provider and exposes the authenticated user on the context. The core only
// ever consumes the resulting user id and email.
func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(401)
		return
	}
	parts := strings.Split(bearerToken, " ")
	if len(parts) < 2 || parts[1] == "" {
		ctx.AbortWithStatus(401)
		return
	}
	reqToken := parts[1]
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		ctx.AbortWithStatus(401)
		return
	}
	if !tkn.Valid {
		ctx.AbortWithStatus(401)
		return
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		ctx.AbortWithStatus(401)
		return
	}
	ctx.Set("user_id", sub)
	ctx.Set("email", claims.Email)
	ctx.Set("uid", claims.UID)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
)

// currentUserID names the caller recorded as created_by. Empty when auth is
// disabled or the route is public.
func currentUserID(c *gin.Context) string {
	claims, ok := middleware.Claims(c)
	if !ok {
		return ""
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Subject
}

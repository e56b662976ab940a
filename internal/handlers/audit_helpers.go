package handlers

import (
	"github.com/gin-gonic/gin"

	"widget-chat-service/internal/middleware"
	"widget-chat-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if id := telemetry.RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

func accountIDFromContext(c *gin.Context) *string {
	if id := middleware.AccountID(c); id != "" {
		return &id
	}
	return nil
}

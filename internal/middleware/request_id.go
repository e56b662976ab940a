package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"widget-chat-service/internal/telemetry"
)

const RequestIDHeader = "X-Request-Id"

// RequestID propagates or assigns a request id and exposes it to audit records.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, id)
		}
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Request = c.Request.WithContext(telemetry.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

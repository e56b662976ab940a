package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	AccountHeader = "X-Account-ID"
	accountKey    = "accountID"
)

// AccountMiddleware reads the account id set by the upstream gateway. Browsers
// cannot set headers on websocket upgrades, so the account_id query parameter is
// accepted as a fallback.
func AccountMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := strings.TrimSpace(c.GetHeader(AccountHeader))
		if accountID == "" {
			accountID = strings.TrimSpace(c.Query("account_id"))
		}
		if accountID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing account"})
			return
		}

		c.Set(accountKey, accountID)
		c.Next()
	}
}

// AccountID returns the id stored by AccountMiddleware.
func AccountID(c *gin.Context) string {
	return c.GetString(accountKey)
}

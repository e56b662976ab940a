package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"widget-chat-service/internal/autoreply"
	"widget-chat-service/internal/conversations"
	"widget-chat-service/internal/repositories"
	"widget-chat-service/internal/session"
)

// writeError maps domain errors to responses. fallback is the 500 message.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrWidgetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "widget not found"})
	case errors.Is(err, repositories.ErrChatNotFound), errors.Is(err, session.ErrNoConversation):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, repositories.ErrRuleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
	case errors.Is(err, conversations.ErrEmptyMessage),
		errors.Is(err, autoreply.ErrInvalidRule),
		errors.Is(err, autoreply.ErrEmptyText),
		errors.Is(err, session.ErrInvalidIdentity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

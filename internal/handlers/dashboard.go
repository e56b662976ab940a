package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"widget-chat-service/internal/conversations"
	"widget-chat-service/internal/middleware"
	"widget-chat-service/internal/models"
)

// DashboardHandler lets the widget owner read and answer conversations.
type DashboardHandler struct {
	svc *conversations.Service
}

// NewDashboardHandler builds a DashboardHandler.
func NewDashboardHandler(svc *conversations.Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// ListConversations returns conversations, most recently active first.
func (h *DashboardHandler) ListConversations(c *gin.Context) {
	chats, err := h.svc.ListChats(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err, "failed to load conversations")
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": chats})
}

// GetMessages returns one conversation's messages in order.
func (h *DashboardHandler) GetMessages(c *gin.Context) {
	msgs, err := h.svc.ChatMessages(c.Request.Context(), middleware.AccountID(c), c.Param("chat_id"))
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage sends a reply as the business.
func (h *DashboardHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SendBusinessMessage(c.Request.Context(), middleware.AccountID(c), c.Param("chat_id"), req.Content)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Typing broadcasts a business typing signal.
func (h *DashboardHandler) Typing(c *gin.Context) {
	if err := h.svc.BusinessTyping(c.Request.Context(), middleware.AccountID(c), c.Param("chat_id")); err != nil {
		writeError(c, err, "failed to broadcast typing")
		return
	}
	c.Status(http.StatusAccepted)
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"widget-chat-service/internal/conversations"
	"widget-chat-service/internal/models"
)

const sessionHeader = "X-Session-Token"

// VisitorHandler serves the embedded widget.
type VisitorHandler struct {
	svc *conversations.Service
}

// NewVisitorHandler builds a VisitorHandler.
func NewVisitorHandler(svc *conversations.Service) *VisitorHandler {
	return &VisitorHandler{svc: svc}
}

func sessionToken(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if token := c.GetHeader(sessionHeader); token != "" {
		return token
	}
	return c.Query("session_token")
}

// bindOptionalJSON decodes the body when there is one. Chunked bodies report no
// length, so presence is decided by reading.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// StartSession resumes the visitor's session or issues a new token.
func (h *VisitorHandler) StartSession(c *gin.Context) {
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, chat, err := h.svc.StartSession(c.Request.Context(), c.Param("widget_id"), sessionToken(c, req.SessionToken))
	if err != nil {
		writeError(c, err, "failed to start session")
		return
	}

	resp := gin.H{"session_token": sess.Token, "identified": sess.Identified()}
	if chat != nil {
		resp["conversation_id"] = chat.ID
	}
	c.JSON(http.StatusOK, resp)
}

// PostMessage stores a visitor message and returns any auto-reply.
func (h *VisitorHandler) PostMessage(c *gin.Context) {
	var req struct {
		SessionToken string  `json:"session_token"`
		Content      string  `json:"content" binding:"required"`
		PageURL      *string `json:"page_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.SendVisitorMessage(c.Request.Context(), c.Param("widget_id"), sessionToken(c, req.SessionToken), req.Content, req.PageURL)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_token":         res.Session.Token,
		"conversation_id":       res.Message.ChatID,
		"message":               res.Message,
		"auto_reply":            res.AutoReply,
		"prompt_identification": res.PromptIdentification,
	})
}

// GetMessages returns the visitor's conversation history.
func (h *VisitorHandler) GetMessages(c *gin.Context) {
	msgs, err := h.svc.VisitorMessages(c.Request.Context(), c.Param("widget_id"), sessionToken(c, ""))
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Identify records the visitor's name and email.
func (h *VisitorHandler) Identify(c *gin.Context) {
	var req struct {
		SessionToken string `json:"session_token"`
		Name         string `json:"name" binding:"required"`
		Email        string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.svc.Identify(c.Request.Context(), c.Param("widget_id"), sessionToken(c, req.SessionToken), req.Name, req.Email)
	if err != nil {
		writeError(c, err, "failed to identify visitor")
		return
	}
	c.JSON(http.StatusOK, chat)
}

// Typing broadcasts a visitor typing signal.
func (h *VisitorHandler) Typing(c *gin.Context) {
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.VisitorTyping(c.Request.Context(), c.Param("widget_id"), sessionToken(c, req.SessionToken)); err != nil {
		writeError(c, err, "failed to broadcast typing")
		return
	}
	c.Status(http.StatusAccepted)
}

package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"widget-chat-service/internal/conversations"
	"widget-chat-service/internal/middleware"
	"widget-chat-service/internal/models"
	"widget-chat-service/internal/observability"
	"widget-chat-service/internal/realtime"
	"widget-chat-service/internal/repositories"
	"widget-chat-service/internal/session"
)

const (
	kindConversation = "conversation"
	kindChatList     = "chat_list"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ConversationWebSocketHandler upgrades visitor and dashboard connections.
type ConversationWebSocketHandler struct {
	hub     *Hub
	channel *realtime.Channel
	svc     *conversations.Service
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
func NewConversationWebSocketHandler(hub *Hub, channel *realtime.Channel, svc *conversations.Service) *ConversationWebSocketHandler {
	return &ConversationWebSocketHandler{hub: hub, channel: channel, svc: svc}
}

// HandleVisitor streams the visitor's own conversation.
func (h *ConversationWebSocketHandler) HandleVisitor(c *gin.Context) {
	ctx, span := h.startSpan(c)
	defer span.End()

	widgetID := c.Param("widget_id")
	token := c.Query("session_token")
	sess, chat, err := h.svc.VisitorConversation(ctx, widgetID, token)
	if err != nil {
		writeLookupError(c, err)
		return
	}

	room := h.conversationRoom(chat, func(ctx context.Context) error {
		return h.svc.VisitorTyping(ctx, widgetID, sess.Token)
	})
	h.serve(c, span, "visitor", sess.Token, room)
}

// HandleDashboardConversation streams one conversation to the widget owner.
func (h *ConversationWebSocketHandler) HandleDashboardConversation(c *gin.Context) {
	ctx, span := h.startSpan(c)
	defer span.End()

	accountID := middleware.AccountID(c)
	chat, err := h.svc.OwnedChat(ctx, accountID, c.Param("chat_id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}

	room := h.conversationRoom(chat, func(ctx context.Context) error {
		return h.svc.BusinessTyping(ctx, accountID, chat.ID)
	})
	h.serve(c, span, "agent", accountID, room)
}

// HandleDashboardChatList streams inserts and updates of the owner's conversation list.
func (h *ConversationWebSocketHandler) HandleDashboardChatList(c *gin.Context) {
	ctx, span := h.startSpan(c)
	defer span.End()

	accountID := middleware.AccountID(c)
	widget, err := h.svc.AccountWidget(ctx, accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load widget"})
		return
	}

	room := Room{
		Kind:       kindChatList,
		ResourceID: widget.ID,
		Subscribe: func(handler realtime.Handler, opts ...realtime.SubscribeOption) []*realtime.Subscription {
			return []*realtime.Subscription{h.channel.SubscribeChats(widget.ID, handler, opts...)}
		},
		Resync: models.ChatEvent{Type: models.EventResync, WidgetID: widget.ID},
	}
	h.serve(c, span, "agent", accountID, room)
}

func (h *ConversationWebSocketHandler) conversationRoom(chat models.Chat, onTyping func(ctx context.Context) error) Room {
	return Room{
		Kind:       kindConversation,
		ResourceID: chat.ID,
		Subscribe: func(handler realtime.Handler, opts ...realtime.SubscribeOption) []*realtime.Subscription {
			return []*realtime.Subscription{
				h.channel.SubscribeMessages(chat.ID, handler, opts...),
				h.channel.SubscribeTyping(chat.ID, handler, opts...),
			}
		},
		Resync:   models.ChatEvent{Type: models.EventResync, ChatID: chat.ID, WidgetID: chat.WidgetID},
		OnTyping: onTyping,
	}
}

func (h *ConversationWebSocketHandler) startSpan(c *gin.Context) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("widget-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	c.Request = c.Request.WithContext(ctx)
	return ctx, span
}

func (h *ConversationWebSocketHandler) serve(c *gin.Context, span trace.Span, role, subject string, room Room) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		Role:        role,
		Subject:     subject,
		IP:          observability.IPFromRequest(c.Request),
		Origin:      observability.OriginFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Serve(context.WithoutCancel(c.Request.Context()), conn, info, room)
}

func writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
	case errors.Is(err, session.ErrNoConversation), errors.Is(err, repositories.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
	}
}

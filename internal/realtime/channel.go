package realtime

import (
	"context"
	"time"

	"widget-chat-service/internal/models"
)

// TypingTTL is how long clients show a typing indicator after one signal.
const TypingTTL = 3 * time.Second

const rulesTopic = "rules"

// MessagesTopic carries message inserts and chat updates for one conversation.
func MessagesTopic(chatID string) string {
	return "chat." + chatID + ".messages"
}

// TypingTopic carries ephemeral typing signals for one conversation.
func TypingTopic(chatID string) string {
	return "chat." + chatID + ".typing"
}

// ChatsTopic carries chat inserts and updates for a widget's conversation list.
func ChatsTopic(widgetID string) string {
	return "widget." + widgetID + ".chats"
}

// Channel is the conversation-level API on top of a Bus.
type Channel struct {
	bus Bus
}

// NewChannel wraps bus.
func NewChannel(bus Bus) *Channel {
	return &Channel{bus: bus}
}

// SubscribeMessages follows message and chat row changes of one conversation.
func (c *Channel) SubscribeMessages(chatID string, h Handler, opts ...SubscribeOption) *Subscription {
	return c.bus.Subscribe(MessagesTopic(chatID), h, opts...)
}

// SubscribeChats follows the conversation list of a widget.
func (c *Channel) SubscribeChats(widgetID string, h Handler, opts ...SubscribeOption) *Subscription {
	return c.bus.Subscribe(ChatsTopic(widgetID), h, opts...)
}

// SubscribeTyping follows typing signals of one conversation.
func (c *Channel) SubscribeTyping(chatID string, h Handler, opts ...SubscribeOption) *Subscription {
	return c.bus.Subscribe(TypingTopic(chatID), h, opts...)
}

// SubscribeRuleChanges follows rule edits of every widget.
func (c *Channel) SubscribeRuleChanges(h Handler, opts ...SubscribeOption) *Subscription {
	return c.bus.Subscribe(rulesTopic, h, opts...)
}

// Unsubscribe releases a handle from any Subscribe call.
func (c *Channel) Unsubscribe(sub *Subscription) {
	c.bus.Unsubscribe(sub)
}

// BroadcastTyping emits a fire-and-forget typing signal.
func (c *Channel) BroadcastTyping(ctx context.Context, chatID, widgetID string, sender models.SenderKind) error {
	return c.bus.Publish(ctx, TypingTopic(chatID), models.ChatEvent{
		Type:        models.EventTyping,
		ChatID:      chatID,
		WidgetID:    widgetID,
		Sender:      sender,
		ExpiresInMS: TypingTTL.Milliseconds(),
	})
}

// MessageInserted announces a committed message and the chat row it touched.
// The insert is published before the update.
func (c *Channel) MessageInserted(ctx context.Context, msg models.Message, chat models.Chat) error {
	if err := c.bus.Publish(ctx, MessagesTopic(msg.ChatID), models.ChatEvent{
		Type:     models.EventMessageInsert,
		ChatID:   msg.ChatID,
		WidgetID: msg.WidgetID,
		Message:  &msg,
	}); err != nil {
		return err
	}
	return c.publishChat(ctx, models.EventChatUpdate, chat, &msg)
}

// ChatCreated announces a new conversation to the widget's list.
func (c *Channel) ChatCreated(ctx context.Context, chat models.Chat) error {
	return c.bus.Publish(ctx, ChatsTopic(chat.WidgetID), models.ChatEvent{
		Type:     models.EventChatInsert,
		ChatID:   chat.ID,
		WidgetID: chat.WidgetID,
		Chat:     &chat,
	})
}

// ChatUpdated announces a changed chat row (e.g. visitor identification).
func (c *Channel) ChatUpdated(ctx context.Context, chat models.Chat) error {
	return c.publishChat(ctx, models.EventChatUpdate, chat, nil)
}

// RulesChanged tells every instance that a widget's rule set changed.
func (c *Channel) RulesChanged(ctx context.Context, widgetID string) error {
	return c.bus.Publish(ctx, rulesTopic, models.ChatEvent{Type: models.EventRulesChanged, WidgetID: widgetID})
}

func (c *Channel) publishChat(ctx context.Context, eventType string, chat models.Chat, last *models.Message) error {
	event := models.ChatEvent{Type: eventType, ChatID: chat.ID, WidgetID: chat.WidgetID, Chat: &chat}
	if err := c.bus.Publish(ctx, MessagesTopic(chat.ID), event); err != nil {
		return err
	}
	event.Message = last
	return c.bus.Publish(ctx, ChatsTopic(chat.WidgetID), event)
}

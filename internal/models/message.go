package models

import "time"

// SenderKind identifies who wrote a message.
type SenderKind string

const (
	SenderVisitor  SenderKind = "visitor"
	SenderBusiness SenderKind = "business"
)

// Message represents a chat message. Messages are append-only.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ChatID         string     `db:"chat_id" json:"chat_id"`
	WidgetID       string     `db:"widget_id" json:"widget_id"`
	Content        string     `db:"content" json:"content"`
	SenderKind     SenderKind `db:"sender_kind" json:"sender_kind"`
	IsAutoReply    bool       `db:"is_auto_reply" json:"is_auto_reply"`
	MatchedKeyword *string    `db:"matched_keyword" json:"matched_keyword,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// TriggersAutoReply is true only for messages typed by a visitor.
func (m Message) TriggersAutoReply() bool {
	return m.SenderKind == SenderVisitor && !m.IsAutoReply
}

// NewMessage is the insert payload for a message.
type NewMessage struct {
	ChatID         string
	WidgetID       string
	Content        string
	SenderKind     SenderKind
	IsAutoReply    bool
	MatchedKeyword *string
}

// Event types broadcast on the realtime channel.
const (
	EventMessageInsert = "message.insert"
	EventChatInsert    = "chat.insert"
	EventChatUpdate    = "chat.update"
	EventTyping        = "typing"
	EventRulesChanged  = "rules.changed"
	EventResync        = "resync"
)

// ChatEvent is broadcast through the realtime channel and websockets.
type ChatEvent struct {
	Type        string     `json:"type"`
	ChatID      string     `json:"chat_id,omitempty"`
	WidgetID    string     `json:"widget_id,omitempty"`
	Message     *Message   `json:"message,omitempty"`
	Chat        *Chat      `json:"chat,omitempty"`
	Sender      SenderKind `json:"sender,omitempty"`
	ExpiresInMS int64      `json:"expires_in_ms,omitempty"`
}

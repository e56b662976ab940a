package models

import "time"

// Outcome records what the auto-reply dispatcher did for a visitor message.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeReplied Outcome = "replied"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeFailed  Outcome = "failed"
)

// AutoReplyOutcome is the dispatch claim row for a visitor message.
type AutoReplyOutcome struct {
	MessageID      int64     `db:"message_id" json:"message_id"`
	Outcome        Outcome   `db:"outcome" json:"outcome"`
	ReplyMessageID *int64    `db:"reply_message_id" json:"reply_message_id,omitempty"`
	Error          *string   `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// UnrepliedMessage is a visitor message whose dispatch never completed.
type UnrepliedMessage struct {
	MessageID int64     `db:"message_id" json:"message_id"`
	ChatID    string    `db:"chat_id" json:"chat_id"`
	WidgetID  string    `db:"widget_id" json:"widget_id"`
	Outcome   *Outcome  `db:"outcome" json:"outcome,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

package models

import "time"

// AutoReplyRule maps a keyword to a canned response for one widget.
type AutoReplyRule struct {
	ID        int64     `db:"id" json:"id"`
	WidgetID  string    `db:"widget_id" json:"widget_id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Keyword   string    `db:"keyword" json:"keyword"`
	Response  string    `db:"response" json:"response"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

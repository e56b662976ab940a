package models

import "time"

// Chat is one visitor's conversation against a widget.
type Chat struct {
	ID           string    `db:"id" json:"id"`
	WidgetID     string    `db:"widget_id" json:"widget_id"`
	VisitorName  *string   `db:"visitor_name" json:"visitor_name,omitempty"`
	VisitorEmail *string   `db:"visitor_email" json:"visitor_email,omitempty"`
	PageURL      *string   `db:"page_url" json:"page_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Identified reports whether both name and email were captured.
func (c Chat) Identified() bool {
	return c.VisitorName != nil && *c.VisitorName != "" && c.VisitorEmail != nil && *c.VisitorEmail != ""
}

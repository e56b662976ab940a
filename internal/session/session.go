// Package session tracks a visitor's widget session across page loads.
package session

import (
	"context"
	"errors"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is what the widget persists between page loads, keyed by Token.
type Session struct {
	Token        string `json:"token"`
	WidgetID     string `json:"widget_id"`
	ChatID       string `json:"chat_id,omitempty"`
	VisitorName  string `json:"visitor_name,omitempty"`
	VisitorEmail string `json:"visitor_email,omitempty"`
	MessageCount int    `json:"message_count"`
	Prompted     bool   `json:"prompted"`
}

// Identified reports whether name and email were captured.
func (s Session) Identified() bool {
	return s.VisitorName != "" && s.VisitorEmail != ""
}

// Store loads and saves sessions.
type Store interface {
	Load(ctx context.Context, token string) (Session, error)
	Save(ctx context.Context, s Session) error
}

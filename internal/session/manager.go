package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"widget-chat-service/internal/models"
	"widget-chat-service/internal/repositories"
)

var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrNoConversation  = errors.New("session has no conversation yet")
)

// ChatNotifier announces chat row changes.
type ChatNotifier interface {
	ChatUpdated(ctx context.Context, chat models.Chat) error
}

// Manager resumes sessions and decides when to ask a visitor to identify.
type Manager struct {
	store     Store
	chats     repositories.ChatRepository
	notifier  ChatNotifier
	threshold int
	logger    zerolog.Logger
}

// NewManager builds a Manager. threshold is the visitor message count that
// triggers the one-time identification prompt.
func NewManager(store Store, chats repositories.ChatRepository, notifier ChatNotifier, threshold int, logger zerolog.Logger) *Manager {
	return &Manager{store: store, chats: chats, notifier: notifier, threshold: threshold, logger: logger}
}

// ResumeOrCreate returns the session for token when it belongs to widgetID and its
// conversation still exists, otherwise a fresh session. The chat is nil until the
// visitor's first message creates it.
func (m *Manager) ResumeOrCreate(ctx context.Context, widgetID, token string) (Session, *models.Chat, error) {
	if token != "" {
		sess, err := m.store.Load(ctx, token)
		switch {
		case err == nil && sess.WidgetID == widgetID:
			if sess.ChatID == "" {
				return sess, nil, nil
			}
			chat, err := m.chats.GetChat(ctx, sess.ChatID)
			if err == nil && chat.WidgetID == widgetID {
				return sess, &chat, nil
			}
			if err != nil && !errors.Is(err, repositories.ErrChatNotFound) {
				return Session{}, nil, err
			}
			m.logger.Debug().Str("chat_id", sess.ChatID).Msg("stored conversation gone, starting over")
		case err != nil && !errors.Is(err, ErrSessionNotFound):
			return Session{}, nil, err
		}
	}

	sess := Session{Token: uuid.NewString(), WidgetID: widgetID}
	if err := m.store.Save(ctx, sess); err != nil {
		return Session{}, nil, err
	}
	return sess, nil, nil
}

// Lookup loads an existing session for widgetID.
func (m *Manager) Lookup(ctx context.Context, widgetID, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}
	sess, err := m.store.Load(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if sess.WidgetID != widgetID {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// AttachChat binds a newly created conversation to the session.
func (m *Manager) AttachChat(ctx context.Context, sess *Session, chatID string) error {
	sess.ChatID = chatID
	return m.store.Save(ctx, *sess)
}

// RecordVisitorMessage counts a sent message. It returns true exactly once, when
// the count reaches the threshold and the visitor has not identified.
func (m *Manager) RecordVisitorMessage(ctx context.Context, sess *Session) (bool, error) {
	sess.MessageCount++
	prompt := !sess.Identified() && !sess.Prompted && sess.MessageCount >= m.threshold
	if prompt {
		sess.Prompted = true
	}
	if err := m.store.Save(ctx, *sess); err != nil {
		return false, err
	}
	return prompt, nil
}

// Identify stores the visitor's name and email on the conversation.
func (m *Manager) Identify(ctx context.Context, sess *Session, name, email string) (models.Chat, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return models.Chat{}, fmt.Errorf("%w: name is required", ErrInvalidIdentity)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.Chat{}, fmt.Errorf("%w: email is invalid", ErrInvalidIdentity)
	}
	if sess.ChatID == "" {
		return models.Chat{}, ErrNoConversation
	}

	chat, err := m.chats.UpdateVisitor(ctx, sess.ChatID, name, email)
	if err != nil {
		return models.Chat{}, err
	}

	sess.VisitorName = name
	sess.VisitorEmail = email
	sess.Prompted = true
	if err := m.store.Save(ctx, *sess); err != nil {
		return models.Chat{}, err
	}

	if err := m.notifier.ChatUpdated(ctx, chat); err != nil {
		m.logger.Warn().Err(err).Str("chat_id", chat.ID).Msg("failed to broadcast chat update")
	}
	return chat, nil
}

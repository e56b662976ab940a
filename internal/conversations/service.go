// Package conversations owns the visitor and dashboard send paths.
package conversations

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"widget-chat-service/internal/models"
	"widget-chat-service/internal/realtime"
	"widget-chat-service/internal/repositories"
	"widget-chat-service/internal/session"
)

var ErrEmptyMessage = errors.New("message content is empty")

// AutoReplier reacts to stored visitor messages.
type AutoReplier interface {
	OnVisitorMessage(ctx context.Context, msg models.Message) *models.Message
}

// VisitorSend is the result of a visitor message.
type VisitorSend struct {
	Session              session.Session
	Message              models.Message
	AutoReply            *models.Message
	PromptIdentification bool
}

// Service stores messages and announces them in commit order per conversation.
type Service struct {
	widgets  repositories.WidgetRepository
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	sessions *session.Manager
	channel  *realtime.Channel
	replier  AutoReplier
	lanes    *lanes
	logger   zerolog.Logger
}

// NewService builds a Service.
func NewService(widgets repositories.WidgetRepository, chats repositories.ChatRepository, messages repositories.MessageRepository, sessions *session.Manager, channel *realtime.Channel, replier AutoReplier, logger zerolog.Logger) *Service {
	return &Service{
		widgets:  widgets,
		chats:    chats,
		messages: messages,
		sessions: sessions,
		channel:  channel,
		replier:  replier,
		lanes:    newLanes(),
		logger:   logger,
	}
}

// StartSession resumes or creates the visitor session for a widget.
func (s *Service) StartSession(ctx context.Context, widgetID, token string) (session.Session, *models.Chat, error) {
	if _, err := s.widgets.GetWidget(ctx, widgetID); err != nil {
		return session.Session{}, nil, err
	}
	if token != "" {
		defer s.lanes.lock("session:" + token)()
	}
	return s.sessions.ResumeOrCreate(ctx, widgetID, token)
}

// SendVisitorMessage stores a visitor message, creating the conversation on the
// first send, and runs the auto-reply before the next message in the same
// conversation is accepted.
func (s *Service) SendVisitorMessage(ctx context.Context, widgetID, token, content string, pageURL *string) (VisitorSend, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return VisitorSend{}, ErrEmptyMessage
	}
	if _, err := s.widgets.GetWidget(ctx, widgetID); err != nil {
		return VisitorSend{}, err
	}

	sess, chat, err := s.openConversation(ctx, widgetID, token, pageURL)
	if err != nil {
		return VisitorSend{}, err
	}

	release := s.lanes.lock("chat:" + chat.ID)
	defer release()

	msg, updated, err := s.messages.InsertMessage(ctx, models.NewMessage{
		ChatID:     chat.ID,
		WidgetID:   widgetID,
		Content:    content,
		SenderKind: models.SenderVisitor,
	})
	if err != nil {
		return VisitorSend{}, err
	}
	s.announce(ctx, msg, updated)

	// Reload inside the lane so concurrent sends do not lose counts.
	if fresh, err := s.sessions.Lookup(ctx, widgetID, sess.Token); err == nil {
		sess = fresh
	}
	prompt, err := s.sessions.RecordVisitorMessage(ctx, &sess)
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_id", chat.ID).Msg("failed to record visitor message on session")
	}

	reply := s.replier.OnVisitorMessage(ctx, msg)

	return VisitorSend{
		Session:              sess,
		Message:              msg,
		AutoReply:            reply,
		PromptIdentification: prompt,
	}, nil
}

func (s *Service) openConversation(ctx context.Context, widgetID, token string, pageURL *string) (session.Session, models.Chat, error) {
	if token != "" {
		defer s.lanes.lock("session:" + token)()
	}
	sess, chat, err := s.sessions.ResumeOrCreate(ctx, widgetID, token)
	if err != nil {
		return session.Session{}, models.Chat{}, err
	}
	if chat != nil {
		return sess, *chat, nil
	}

	created, err := s.chats.CreateChat(ctx, widgetID, pageURL)
	if err != nil {
		return session.Session{}, models.Chat{}, err
	}
	if err := s.sessions.AttachChat(ctx, &sess, created.ID); err != nil {
		return session.Session{}, models.Chat{}, err
	}
	if err := s.channel.ChatCreated(ctx, created); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", created.ID).Msg("failed to broadcast new chat")
	}
	return sess, created, nil
}

// SendBusinessMessage stores a reply typed by the widget owner.
func (s *Service) SendBusinessMessage(ctx context.Context, accountID, chatID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyMessage
	}
	chat, err := s.ownedChat(ctx, accountID, chatID)
	if err != nil {
		return models.Message{}, err
	}

	release := s.lanes.lock("chat:" + chat.ID)
	defer release()

	msg, updated, err := s.messages.InsertMessage(ctx, models.NewMessage{
		ChatID:     chat.ID,
		WidgetID:   chat.WidgetID,
		Content:    content,
		SenderKind: models.SenderBusiness,
	})
	if err != nil {
		return models.Message{}, err
	}
	s.announce(ctx, msg, updated)
	return msg, nil
}

// VisitorConversation resolves the conversation behind a visitor session.
func (s *Service) VisitorConversation(ctx context.Context, widgetID, token string) (session.Session, models.Chat, error) {
	sess, err := s.sessions.Lookup(ctx, widgetID, token)
	if err != nil {
		return session.Session{}, models.Chat{}, err
	}
	if sess.ChatID == "" {
		return sess, models.Chat{}, session.ErrNoConversation
	}
	chat, err := s.chats.GetChat(ctx, sess.ChatID)
	if err != nil {
		return session.Session{}, models.Chat{}, err
	}
	return sess, chat, nil
}

// VisitorMessages lists the visitor's conversation history.
func (s *Service) VisitorMessages(ctx context.Context, widgetID, token string) ([]models.Message, error) {
	_, chat, err := s.VisitorConversation(ctx, widgetID, token)
	if errors.Is(err, session.ErrNoConversation) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, chat.ID)
}

// Identify attaches visitor name and email to the session's conversation.
func (s *Service) Identify(ctx context.Context, widgetID, token, name, email string) (models.Chat, error) {
	sess, err := s.sessions.Lookup(ctx, widgetID, token)
	if err != nil {
		return models.Chat{}, err
	}
	if sess.ChatID == "" {
		return s.sessions.Identify(ctx, &sess, name, email)
	}

	release := s.lanes.lock("chat:" + sess.ChatID)
	defer release()
	if sess, err = s.sessions.Lookup(ctx, widgetID, token); err != nil {
		return models.Chat{}, err
	}
	return s.sessions.Identify(ctx, &sess, name, email)
}

// VisitorTyping broadcasts a visitor typing indicator.
func (s *Service) VisitorTyping(ctx context.Context, widgetID, token string) error {
	_, chat, err := s.VisitorConversation(ctx, widgetID, token)
	if err != nil {
		return err
	}
	return s.channel.BroadcastTyping(ctx, chat.ID, chat.WidgetID, models.SenderVisitor)
}

// OwnedChat returns the chat when it belongs to the account's widget.
func (s *Service) OwnedChat(ctx context.Context, accountID, chatID string) (models.Chat, error) {
	return s.ownedChat(ctx, accountID, chatID)
}

// ChatMessages lists a conversation for the widget owner.
func (s *Service) ChatMessages(ctx context.Context, accountID, chatID string) ([]models.Message, error) {
	chat, err := s.ownedChat(ctx, accountID, chatID)
	if err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, chat.ID)
}

// AccountWidget returns the account's widget, creating it on first use.
func (s *Service) AccountWidget(ctx context.Context, accountID string) (models.Widget, error) {
	return s.widgets.GetOrCreateForAccount(ctx, accountID)
}

// ListChats lists the account's conversations, most recently active first.
func (s *Service) ListChats(ctx context.Context, accountID string) ([]models.Chat, error) {
	widget, err := s.widgets.GetOrCreateForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.chats.ListChats(ctx, widget.ID)
}

// BusinessTyping broadcasts a typing indicator from the widget owner.
func (s *Service) BusinessTyping(ctx context.Context, accountID, chatID string) error {
	chat, err := s.ownedChat(ctx, accountID, chatID)
	if err != nil {
		return err
	}
	return s.channel.BroadcastTyping(ctx, chat.ID, chat.WidgetID, models.SenderBusiness)
}

func (s *Service) ownedChat(ctx context.Context, accountID, chatID string) (models.Chat, error) {
	widget, err := s.widgets.GetOrCreateForAccount(ctx, accountID)
	if err != nil {
		return models.Chat{}, err
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.WidgetID != widget.ID {
		return models.Chat{}, repositories.ErrChatNotFound
	}
	return chat, nil
}

func (s *Service) announce(ctx context.Context, msg models.Message, chat models.Chat) {
	if err := s.channel.MessageInserted(ctx, msg, chat); err != nil {
		s.logger.Warn().Err(err).Int64("message_id", msg.ID).Str("chat_id", msg.ChatID).Msg("failed to broadcast message")
	}
}

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"widget-chat-service/internal/models"
)

type WidgetRepositoryMock struct {
	mock.Mock
}

func (m *WidgetRepositoryMock) GetOrCreateForAccount(ctx context.Context, accountID string) (models.Widget, error) {
	args := m.Called(ctx, accountID)
	var widget models.Widget
	if val := args.Get(0); val != nil {
		widget = val.(models.Widget)
	}
	return widget, args.Error(1)
}

func (m *WidgetRepositoryMock) GetWidget(ctx context.Context, widgetID string) (models.Widget, error) {
	args := m.Called(ctx, widgetID)
	var widget models.Widget
	if val := args.Get(0); val != nil {
		widget = val.(models.Widget)
	}
	return widget, args.Error(1)
}

func (m *WidgetRepositoryMock) UpdateSettings(ctx context.Context, accountID string, settings models.WidgetSettings) (models.Widget, error) {
	args := m.Called(ctx, accountID, settings)
	var widget models.Widget
	if val := args.Get(0); val != nil {
		widget = val.(models.Widget)
	}
	return widget, args.Error(1)
}

type RuleRepositoryMock struct {
	mock.Mock
}

func (m *RuleRepositoryMock) ListRules(ctx context.Context, widgetID string) ([]models.AutoReplyRule, error) {
	args := m.Called(ctx, widgetID)
	var rules []models.AutoReplyRule
	if val := args.Get(0); val != nil {
		rules = val.([]models.AutoReplyRule)
	}
	return rules, args.Error(1)
}

func (m *RuleRepositoryMock) CreateRule(ctx context.Context, widgetID, accountID, keyword, response string) (models.AutoReplyRule, error) {
	args := m.Called(ctx, widgetID, accountID, keyword, response)
	var rule models.AutoReplyRule
	if val := args.Get(0); val != nil {
		rule = val.(models.AutoReplyRule)
	}
	return rule, args.Error(1)
}

func (m *RuleRepositoryMock) DeleteRule(ctx context.Context, accountID string, ruleID int64) (models.AutoReplyRule, error) {
	args := m.Called(ctx, accountID, ruleID)
	var rule models.AutoReplyRule
	if val := args.Get(0); val != nil {
		rule = val.(models.AutoReplyRule)
	}
	return rule, args.Error(1)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, widgetID string, pageURL *string) (models.Chat, error) {
	args := m.Called(ctx, widgetID, pageURL)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, widgetID string) ([]models.Chat, error) {
	args := m.Called(ctx, widgetID)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateVisitor(ctx context.Context, chatID string, name, email string) (models.Chat, error) {
	args := m.Called(ctx, chatID, name, email)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) InsertMessage(ctx context.Context, msg models.NewMessage) (models.Message, models.Chat, error) {
	args := m.Called(ctx, msg)
	var (
		saved models.Message
		chat  models.Chat
	)
	if val := args.Get(0); val != nil {
		saved = val.(models.Message)
	}
	if val := args.Get(1); val != nil {
		chat = val.(models.Chat)
	}
	return saved, chat, args.Error(2)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

type OutcomeRepositoryMock struct {
	mock.Mock
}

func (m *OutcomeRepositoryMock) Claim(ctx context.Context, messageID int64) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *OutcomeRepositoryMock) Resolve(ctx context.Context, messageID int64, outcome models.Outcome, replyID *int64, errText *string) error {
	args := m.Called(ctx, messageID, outcome, replyID, errText)
	return args.Error(0)
}

func (m *OutcomeRepositoryMock) ListUnresolved(ctx context.Context, since, before time.Time, limit int) ([]models.UnrepliedMessage, error) {
	args := m.Called(ctx, since, before, limit)
	var list []models.UnrepliedMessage
	if val := args.Get(0); val != nil {
		list = val.([]models.UnrepliedMessage)
	}
	return list, args.Error(1)
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"widget-chat-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

const chatColumns = `id, widget_id, visitor_name, visitor_email, page_url, created_at, updated_at`

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, widgetID string, pageURL *string) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChats(ctx context.Context, widgetID string) ([]models.Chat, error)
	UpdateVisitor(ctx context.Context, chatID string, name, email string) (models.Chat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat opens a new conversation for a widget.
func (r *ChatRepo) CreateChat(ctx context.Context, widgetID string, pageURL *string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `INSERT INTO chats (id, widget_id, page_url) VALUES ($1, $2, $3) RETURNING `+chatColumns,
		uuid.NewString(), widgetID, pageURL)
	return chat, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	if _, err := uuid.Parse(chatID); err != nil {
		return models.Chat{}, ErrChatNotFound
	}
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns a widget's chats, most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context, widgetID string) ([]models.Chat, error) {
	chats := []models.Chat{}
	err := r.db.SelectContext(ctx, &chats, `SELECT `+chatColumns+` FROM chats WHERE widget_id=$1 ORDER BY updated_at DESC`, widgetID)
	return chats, err
}

// UpdateVisitor stores the visitor's identification.
func (r *ChatRepo) UpdateVisitor(ctx context.Context, chatID string, name, email string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `UPDATE chats SET visitor_name=$2, visitor_email=$3, updated_at=NOW() WHERE id=$1 RETURNING `+chatColumns,
		chatID, name, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// touchUpdatedAt advances a chat's updated_at to at, never backwards. It runs
// inside the caller's transaction.
func touchUpdatedAt(ctx context.Context, q sqlx.QueryerContext, chatID string, at time.Time) (models.Chat, error) {
	var chat models.Chat
	err := sqlx.GetContext(ctx, q, &chat, `UPDATE chats SET updated_at=GREATEST(updated_at, $2) WHERE id=$1 RETURNING `+chatColumns, chatID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

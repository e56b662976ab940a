package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"widget-chat-service/internal/models"
)

const messageColumns = `id, chat_id, widget_id, content, sender_kind, is_auto_reply, matched_keyword, created_at`

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	InsertMessage(ctx context.Context, msg models.NewMessage) (models.Message, models.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// InsertMessage stores a message and advances the chat's updated_at in the same transaction.
func (r *MessageRepo) InsertMessage(ctx context.Context, in models.NewMessage) (msg models.Message, chat models.Chat, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &msg, `INSERT INTO messages (chat_id, widget_id, content, sender_kind, is_auto_reply, matched_keyword)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		in.ChatID, in.WidgetID, in.Content, in.SenderKind, in.IsAutoReply, in.MatchedKeyword); err != nil {
		return models.Message{}, models.Chat{}, err
	}

	if chat, err = touchUpdatedAt(ctx, tx, in.ChatID, msg.CreatedAt); err != nil {
		return models.Message{}, models.Chat{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, models.Chat{}, err
	}
	return msg, chat, nil
}

// ListMessages returns a chat's messages in commit order.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 ORDER BY created_at ASC, id ASC`, chatID)
	return msgs, err
}

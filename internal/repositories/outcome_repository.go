package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"widget-chat-service/internal/models"
)

// OutcomeRepository tracks auto-reply dispatch per visitor message.
type OutcomeRepository interface {
	Claim(ctx context.Context, messageID int64) (bool, error)
	Resolve(ctx context.Context, messageID int64, outcome models.Outcome, replyID *int64, errText *string) error
	ListUnresolved(ctx context.Context, since, before time.Time, limit int) ([]models.UnrepliedMessage, error)
}

// OutcomeRepo is a sqlx-backed OutcomeRepository.
type OutcomeRepo struct {
	db *sqlx.DB
}

// NewOutcomeRepo constructs an OutcomeRepo.
func NewOutcomeRepo(db *sqlx.DB) *OutcomeRepo {
	return &OutcomeRepo{db: db}
}

// Claim inserts a pending row. It reports false when the message was already claimed.
func (r *OutcomeRepo) Claim(ctx context.Context, messageID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO auto_reply_outcomes (message_id, outcome) VALUES ($1, 'pending') ON CONFLICT (message_id) DO NOTHING`, messageID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// Resolve records the final outcome of a claimed message.
func (r *OutcomeRepo) Resolve(ctx context.Context, messageID int64, outcome models.Outcome, replyID *int64, errText *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE auto_reply_outcomes SET outcome=$2, reply_message_id=$3, error=$4, updated_at=NOW() WHERE message_id=$1`,
		messageID, outcome, replyID, errText)
	return err
}

// ListUnresolved returns visitor messages created in [since, before) whose dispatch is
// missing, still pending, or failed.
func (r *OutcomeRepo) ListUnresolved(ctx context.Context, since, before time.Time, limit int) ([]models.UnrepliedMessage, error) {
	query := `SELECT m.id AS message_id, m.chat_id, m.widget_id, o.outcome, m.created_at
        FROM messages m
        LEFT JOIN auto_reply_outcomes o ON o.message_id = m.id
        WHERE m.sender_kind = 'visitor'
        AND m.created_at >= $1 AND m.created_at < $2
        AND (o.message_id IS NULL OR o.outcome IN ('pending', 'failed'))
        ORDER BY m.created_at ASC
        LIMIT $3`
	rows := []models.UnrepliedMessage{}
	err := r.db.SelectContext(ctx, &rows, query, since, before, limit)
	return rows, err
}

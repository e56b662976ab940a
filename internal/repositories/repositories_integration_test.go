package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/db"
	"widget-chat-service/internal/models"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	database, err := db.Connect(dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestConversationLifecycle(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	widgets := NewWidgetRepo(database)
	rules := NewRuleRepo(database)
	chats := NewChatRepo(database)
	messages := NewMessageRepo(database)
	outcomes := NewOutcomeRepo(database)

	account := "acct-" + uuid.NewString()
	widget, err := widgets.GetOrCreateForAccount(ctx, account)
	require.NoError(t, err)
	again, err := widgets.GetOrCreateForAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, widget.ID, again.ID)

	rule, err := rules.CreateRule(ctx, widget.ID, account, "hours", "9-5 EST")
	require.NoError(t, err)
	listed, err := rules.ListRules(ctx, widget.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = rules.DeleteRule(ctx, "someone-else", rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	chat, err := chats.CreateChat(ctx, widget.ID, nil)
	require.NoError(t, err)

	visitor, touched, err := messages.InsertMessage(ctx, models.NewMessage{ChatID: chat.ID, WidgetID: widget.ID, Content: "what are your hours?", SenderKind: models.SenderVisitor})
	require.NoError(t, err)
	assert.False(t, touched.UpdatedAt.Before(visitor.CreatedAt))

	claimed, err := outcomes.Claim(ctx, visitor.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = outcomes.Claim(ctx, visitor.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	keyword := "hours"
	reply, _, err := messages.InsertMessage(ctx, models.NewMessage{ChatID: chat.ID, WidgetID: widget.ID, Content: "9-5 EST", SenderKind: models.SenderBusiness, IsAutoReply: true, MatchedKeyword: &keyword})
	require.NoError(t, err)
	require.NoError(t, outcomes.Resolve(ctx, visitor.ID, models.OutcomeReplied, &reply.ID, nil))

	history, err := messages.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, visitor.ID, history[0].ID)
	assert.Equal(t, reply.ID, history[1].ID)

	_, _, err = messages.InsertMessage(ctx, models.NewMessage{ChatID: chat.ID, WidgetID: widget.ID, Content: "bad", SenderKind: models.SenderBusiness, IsAutoReply: true})
	assert.Error(t, err)

	deleted, err := rules.DeleteRule(ctx, account, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, widget.ID, deleted.WidgetID)
}

func TestTouchUpdatedAtNeverMovesBackwards(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	widget, err := NewWidgetRepo(database).GetOrCreateForAccount(ctx, "acct-"+uuid.NewString())
	require.NoError(t, err)
	chat, err := NewChatRepo(database).CreateChat(ctx, widget.ID, nil)
	require.NoError(t, err)

	later := chat.UpdatedAt.Add(time.Hour)
	touched, err := touchUpdatedAt(ctx, database, chat.ID, later)
	require.NoError(t, err)
	assert.True(t, touched.UpdatedAt.Equal(later))

	stale, err := touchUpdatedAt(ctx, database, chat.ID, chat.UpdatedAt)
	require.NoError(t, err)
	assert.True(t, stale.UpdatedAt.Equal(later))

	_, err = touchUpdatedAt(ctx, database, uuid.NewString(), later)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

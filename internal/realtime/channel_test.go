package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/models"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	bus := NewLocalBus(64, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })
	return NewChannel(bus)
}

func TestChannelMessageInsertedPublishesInsertThenUpdate(t *testing.T) {
	ch := newTestChannel(t)
	conv, list := &recorder{}, &recorder{}
	ch.SubscribeMessages("c1", conv.handle)
	ch.SubscribeChats("w1", list.handle)

	bumped := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := models.Message{ID: 7, ChatID: "c1", WidgetID: "w1", Content: "hi", SenderKind: models.SenderVisitor}
	chat := models.Chat{ID: "c1", WidgetID: "w1", UpdatedAt: bumped}

	require.NoError(t, ch.MessageInserted(context.Background(), msg, chat))

	require.Eventually(t, func() bool { return conv.len() == 2 && list.len() == 1 }, time.Second, 5*time.Millisecond)

	events := conv.snapshot()
	assert.Equal(t, models.EventMessageInsert, events[0].Type)
	require.NotNil(t, events[0].Message)
	assert.Equal(t, int64(7), events[0].Message.ID)
	assert.Equal(t, models.EventChatUpdate, events[1].Type)
	require.NotNil(t, events[1].Chat)
	assert.Equal(t, bumped, events[1].Chat.UpdatedAt)

	listed := list.snapshot()[0]
	assert.Equal(t, models.EventChatUpdate, listed.Type)
	require.NotNil(t, listed.Message)
	assert.Equal(t, "hi", listed.Message.Content)
}

func TestChannelBroadcastTypingCarriesTTL(t *testing.T) {
	ch := newTestChannel(t)
	typing, messages := &recorder{}, &recorder{}
	ch.SubscribeTyping("c1", typing.handle)
	ch.SubscribeMessages("c1", messages.handle)

	require.NoError(t, ch.BroadcastTyping(context.Background(), "c1", "w1", models.SenderBusiness))

	require.Eventually(t, func() bool { return typing.len() == 1 }, time.Second, 5*time.Millisecond)
	ev := typing.snapshot()[0]
	assert.Equal(t, models.EventTyping, ev.Type)
	assert.Equal(t, models.SenderBusiness, ev.Sender)
	assert.Equal(t, int64(3000), ev.ExpiresInMS)
	assert.Equal(t, 0, messages.len())
}

func TestChannelChatCreatedAndRulesChanged(t *testing.T) {
	ch := newTestChannel(t)
	list, rules := &recorder{}, &recorder{}
	ch.SubscribeChats("w1", list.handle)
	ch.SubscribeRuleChanges(rules.handle)

	require.NoError(t, ch.ChatCreated(context.Background(), models.Chat{ID: "c9", WidgetID: "w1"}))
	require.NoError(t, ch.RulesChanged(context.Background(), "w1"))

	require.Eventually(t, func() bool { return list.len() == 1 && rules.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.EventChatInsert, list.snapshot()[0].Type)
	assert.Equal(t, "c9", list.snapshot()[0].ChatID)
	assert.Equal(t, models.EventRulesChanged, rules.snapshot()[0].Type)
	assert.Equal(t, "w1", rules.snapshot()[0].WidgetID)
}

func TestChannelUnsubscribe(t *testing.T) {
	ch := newTestChannel(t)
	rec := &recorder{}
	sub := ch.SubscribeMessages("c1", rec.handle)
	ch.Unsubscribe(sub)

	require.NoError(t, ch.MessageInserted(context.Background(), models.Message{ChatID: "c1"}, models.Chat{ID: "c1"}))
	assert.Never(t, func() bool { return rec.len() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

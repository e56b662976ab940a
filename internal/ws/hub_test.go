package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/models"
	"widget-chat-service/internal/realtime"
)

type hubFixture struct {
	hub     *Hub
	channel *realtime.Channel
	typed   atomic.Int32
	server  *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	bus := realtime.NewLocalBus(16, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	f := &hubFixture{channel: realtime.NewChannel(bus)}
	f.hub = NewHub(f.channel, zerolog.Nop())

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		room := Room{
			Kind:       kindConversation,
			ResourceID: "c1",
			Subscribe: func(h realtime.Handler, opts ...realtime.SubscribeOption) []*realtime.Subscription {
				return []*realtime.Subscription{
					f.channel.SubscribeMessages("c1", h, opts...),
					f.channel.SubscribeTyping("c1", h, opts...),
				}
			},
			Resync: models.ChatEvent{Type: models.EventResync, ChatID: "c1"},
			OnTyping: func(ctx context.Context) error {
				f.typed.Add(1)
				return f.channel.BroadcastTyping(ctx, "c1", "w1", models.SenderVisitor)
			},
		}
		f.hub.Serve(context.Background(), conn, ConnInfo{ConnID: newConnID(), ConnectedAt: time.Now()}, room)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *hubFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return f.hub.RoomSize(kindConversation, "c1") > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHubStreamsConversationEvents(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	msg := models.Message{ID: 1, ChatID: "c1", WidgetID: "w1", Content: "hi", SenderKind: models.SenderVisitor}
	require.NoError(t, f.channel.MessageInserted(context.Background(), msg, models.Chat{ID: "c1", WidgetID: "w1"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second models.ChatEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, models.EventMessageInsert, first.Type)
	require.NotNil(t, first.Message)
	assert.Equal(t, "hi", first.Message.Content)
	assert.Equal(t, models.EventChatUpdate, second.Type)
}

func TestHubRebroadcastsInboundTyping(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "typing"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.ChatEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventTyping, ev.Type)
	assert.Equal(t, int64(3000), ev.ExpiresInMS)
	assert.Equal(t, int32(1), f.typed.Load())
}

func TestHubRemovesClientOnClose(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return f.hub.RoomSize(kindConversation, "c1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestClientEnqueueOverflowRequestsResync(t *testing.T) {
	c := &client{send: make(chan []byte), done: make(chan struct{})}

	c.enqueue(models.ChatEvent{Type: models.EventMessageInsert})

	assert.True(t, c.resync.Load())
	select {
	case <-c.done:
	default:
		t.Fatal("expected client to shut down")
	}
}

package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"widget-chat-service/internal/models"
	"widget-chat-service/internal/observability"
	"widget-chat-service/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxInboundSize = 4096
	sendBuffer     = 64
)

// Room describes what a connection follows.
type Room struct {
	Kind       string
	ResourceID string
	// Subscribe attaches h to every topic of the room.
	Subscribe func(h realtime.Handler, opts ...realtime.SubscribeOption) []*realtime.Subscription
	// Resync is the frame sent before closing a connection that fell behind.
	Resync models.ChatEvent
	// OnTyping handles inbound typing frames. Nil ignores them.
	OnTyping func(ctx context.Context) error
}

type inboundFrame struct {
	Type string `json:"type"`
}

type client struct {
	conn   *websocket.Conn
	info   ConnInfo
	room   Room
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	resync atomic.Bool
}

func (c *client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) enqueue(ev models.ChatEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		c.requestResync()
	}
}

func (c *client) requestResync() {
	c.resync.Store(true)
	c.shutdown()
}

// Hub tracks live websocket connections per room.
type Hub struct {
	channel *realtime.Channel
	rooms   map[string]map[*client]ConnInfo
	mu      sync.RWMutex
	logger  zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(channel *realtime.Channel, logger zerolog.Logger) *Hub {
	return &Hub{
		channel: channel,
		rooms:   make(map[string]map[*client]ConnInfo),
		logger:  logger,
	}
}

// RoomSize reports open connections in a room.
func (h *Hub) RoomSize(kind, resourceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey(kind, resourceID)])
}

func (h *Hub) add(c *client) {
	key := roomKey(c.room.Kind, c.room.ResourceID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[key]; !ok {
		h.rooms[key] = make(map[*client]ConnInfo)
	}
	h.rooms[key][c] = c.info
}

func (h *Hub) remove(c *client) {
	key := roomKey(c.room.Kind, c.room.ResourceID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[key]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, key)
		}
	}
}

// Serve pumps room events to conn until either side closes. It blocks.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, info ConnInfo, room Room) {
	c := &client{
		conn: conn,
		info: info,
		room: room,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.add(c)
	subs := room.Subscribe(c.enqueue, realtime.OnDrop(c.requestResync))

	observability.IncWSActive(room.Kind)
	h.publishWSEvent(ctx, c, "ws_connect", "")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(c)
	}()

	reason := h.readPump(ctx, c)
	c.shutdown()
	<-writerDone

	for _, sub := range subs {
		h.channel.Unsubscribe(sub)
	}
	h.remove(c)
	observability.DecWSActive(room.Kind)
	if c.resync.Load() {
		reason = "resync"
	}
	h.publishWSEvent(ctx, c, "ws_disconnect", reason)
}

func (h *Hub) readPump(ctx context.Context, c *client) string {
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.done:
				return "server closed"
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.publishWSEvent(ctx, c, "ws_error", err.Error())
			}
			return err.Error()
		}
		if frame.Type == models.EventTyping && c.room.OnTyping != nil {
			if err := c.room.OnTyping(ctx); err != nil {
				h.logger.Debug().Err(err).Str("conn_id", c.info.ConnID).Msg("typing broadcast failed")
			}
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if c.resync.Load() {
				if payload, err := json.Marshal(c.room.Resync); err == nil {
					_ = c.conn.WriteMessage(websocket.TextMessage, payload)
				}
			}
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *Hub) publishWSEvent(ctx context.Context, c *client, event, reason string) {
	observability.IncWSEvent(c.room.Kind, event)
	_ = observability.PublishEvent(context.WithoutCancel(ctx), "ws_events."+c.room.Kind, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		RequestID: c.info.RequestID,
		TraceID:   c.info.TraceID,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        c.room.Kind,
				"resource_id": c.room.ResourceID,
				"event":       event,
				"conn_id":     c.info.ConnID,
				"duration_ms": time.Since(c.info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"role":    c.info.Role,
				"subject": c.info.Subject,
				"ip":      c.info.IP,
				"origin":  c.info.Origin,
			},
		},
	})
	if event != "ws_connect" {
		h.logger.Debug().Str("conn_id", c.info.ConnID).Str("event", event).Str("reason", reason).Msg("websocket closed")
	}
}

func roomKey(kind, resourceID string) string {
	return kind + ":" + resourceID
}

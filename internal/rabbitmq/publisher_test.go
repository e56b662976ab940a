package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/observability"
	"widget-chat-service/internal/telemetry"
)

func TestNewPublisherFallsBackToNoop(t *testing.T) {
	p := NewPublisher("", "exchange", zerolog.Nop())

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Publish(context.Background(), "chat_events.message_created", telemetry.AuditEnvelope{EventType: "audit_log"}))
	require.NoError(t, p.Close())
}

func TestNoopPublisherLogsEnvelopeIdentity(t *testing.T) {
	var buf bytes.Buffer
	p := NewPublisher("", "exchange", zerolog.New(&buf).Level(zerolog.DebugLevel))

	require.NoError(t, p.Publish(context.Background(), "ws_events.conversation", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		RequestID: "req-1",
	}))
	require.NoError(t, p.Publish(context.Background(), "audit.widget_chat", telemetry.AuditEnvelope{EventType: "audit_log", RequestID: "req-2"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var domain, audit map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &domain))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &audit))
	assert.Equal(t, "ws_events", domain["event_type"])
	assert.Equal(t, "ws_connect", domain["event_name"])
	assert.Equal(t, "req-1", domain["request_id"])
	assert.Equal(t, "audit_log", audit["event_type"])
	assert.Equal(t, "req-2", audit["request_id"])
}

package realtime

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/models"
)

func newTestRedisClient(t *testing.T, name string) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	opts.ClientName = name
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestRedisBus(t *testing.T, name string) *RedisBus {
	t.Helper()
	client := newTestRedisClient(t, name)
	bus, err := NewRedisBus(context.Background(), client, NewLocalBus(64, zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus
}

// killClientsNamed closes the server side of every connection registered under name.
func killClientsNamed(t *testing.T, admin *redis.Client, name string) {
	t.Helper()
	list, err := admin.ClientList(context.Background()).Result()
	require.NoError(t, err)

	killed := 0
	for _, line := range strings.Split(list, "\n") {
		if !strings.Contains(line, " name="+name+" ") {
			continue
		}
		for _, field := range strings.Fields(line) {
			if id, ok := strings.CutPrefix(field, "id="); ok {
				require.NoError(t, admin.Do(context.Background(), "CLIENT", "KILL", "ID", id).Err())
				killed++
			}
		}
	}
	require.Positive(t, killed, "no connection named %s", name)
}

func TestRedisBusPublishFailureDropsTopicSubscribers(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	local := NewLocalBus(8, zerolog.Nop())
	defer local.Close()
	bus := &RedisBus{client: client, local: local, logger: zerolog.Nop()}

	dropped := make(chan struct{})
	sub := bus.Subscribe("chat.c1.messages", func(models.ChatEvent) {}, OnDrop(func() { close(dropped) }))
	bystander := bus.Subscribe("chat.c2.messages", func(models.ChatEvent) {})

	err := bus.Publish(context.Background(), "chat.c1.messages", models.ChatEvent{Type: models.EventMessageInsert})
	require.Error(t, err)

	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("expected subscriber to be told it missed an event")
	}
	<-sub.Done()
	assert.Equal(t, 0, local.SubscriberCount("chat.c1.messages"))
	assert.Equal(t, 1, local.SubscriberCount(bystander.Topic()))
}

func TestRedisBusDeliversAcrossInstancesInOrder(t *testing.T) {
	publisher := newTestRedisBus(t, "widgetchat-test-pub-"+uuid.NewString())
	follower := newTestRedisBus(t, "widgetchat-test-sub-"+uuid.NewString())

	topic := MessagesTopic(uuid.NewString())
	got := &recorder{}
	follower.Subscribe(topic, got.handle)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, publisher.Publish(context.Background(), topic, models.ChatEvent{Type: models.EventMessageInsert, ChatID: strconv.Itoa(i)}))
	}

	require.Eventually(t, func() bool { return got.len() == n }, 5*time.Second, 10*time.Millisecond)
	for i, ev := range got.snapshot() {
		assert.Equal(t, strconv.Itoa(i), ev.ChatID)
	}
}

func TestRedisBusReconnectSignalsResync(t *testing.T) {
	name := "widgetchat-test-reconnect-" + uuid.NewString()
	bus := newTestRedisBus(t, name)
	admin := newTestRedisClient(t, "widgetchat-test-admin-"+uuid.NewString())

	topic := MessagesTopic(uuid.NewString())
	dropped := make(chan struct{})
	got := &recorder{}
	bus.Subscribe(topic, got.handle, OnDrop(func() { close(dropped) }))

	require.NoError(t, bus.Publish(context.Background(), topic, models.ChatEvent{Type: models.EventMessageInsert, ChatID: "1"}))
	require.Eventually(t, func() bool { return got.len() == 1 }, 5*time.Second, 10*time.Millisecond)

	killClientsNamed(t, admin, name)

	select {
	case <-dropped:
	case <-time.After(10 * time.Second):
		t.Fatal("expected subscriber to be dropped after the pubsub connection was reset")
	}
	assert.Equal(t, 0, bus.local.SubscriberCount(topic))

	// A fresh subscription works again once the pattern is re-established.
	again := &recorder{}
	bus.Subscribe(topic, again.handle)
	require.Eventually(t, func() bool {
		_ = bus.Publish(context.Background(), topic, models.ChatEvent{Type: models.EventMessageInsert, ChatID: "3"})
		return again.len() > 0
	}, 5*time.Second, 50*time.Millisecond)
}

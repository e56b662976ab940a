package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"widget-chat-service/internal/models"
)

const redisChannelPrefix = "widgetchat:"

// RedisBus shares events between service instances through Redis pub/sub.
// Every instance holds one pattern subscription and hands received events to
// its LocalBus, so local subscribers see the same order Redis saw.
type RedisBus struct {
	client redis.UniversalClient
	local  *LocalBus
	pubsub *redis.PubSub
	logger zerolog.Logger
	done   chan struct{}
}

// NewRedisBus subscribes to the shared channel space and starts forwarding.
func NewRedisBus(ctx context.Context, client redis.UniversalClient, local *LocalBus, logger zerolog.Logger) (*RedisBus, error) {
	pubsub := client.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis psubscribe: %w", err)
	}

	b := &RedisBus{
		client: client,
		local:  local,
		pubsub: pubsub,
		logger: logger,
		done:   make(chan struct{}),
	}
	go b.listen()
	return b, nil
}

// Publish sends the event to every instance, including this one. When Redis
// rejects the publish, local subscribers of the topic are dropped so they
// re-list instead of silently missing the event.
func (b *RedisBus) Publish(ctx context.Context, topic string, event models.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+topic, payload).Err(); err != nil {
		dropped := b.local.DropTopic(topic)
		b.logger.Error().Err(err).Str("topic", topic).Int("dropped", dropped).Msg("realtime publish failed")
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe registers a local handler.
func (b *RedisBus) Subscribe(topic string, handler Handler, opts ...SubscribeOption) *Subscription {
	return b.local.Subscribe(topic, handler, opts...)
}

// Unsubscribe removes a local handler.
func (b *RedisBus) Unsubscribe(sub *Subscription) {
	b.local.Unsubscribe(sub)
}

// Close stops forwarding and local delivery.
func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	<-b.done
	b.local.Close()
	return err
}

// listen forwards Redis messages to the local bus. The initial subscription
// confirmation is consumed by NewRedisBus, so any confirmation seen here means
// go-redis reconnected and events published in between were lost.
func (b *RedisBus) listen() {
	defer close(b.done)
	for item := range b.pubsub.ChannelWithSubscriptions() {
		switch msg := item.(type) {
		case *redis.Subscription:
			if msg.Kind != "psubscribe" {
				continue
			}
			dropped := b.local.DropAll()
			b.logger.Warn().Int("dropped", dropped).Msg("redis pubsub reconnected, realtime subscribers must resync")
		case *redis.Message:
			topic := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			var event models.ChatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error().Err(err).Str("channel", msg.Channel).Msg("discarding malformed realtime event")
				continue
			}
			b.local.deliver(topic, event)
		}
	}
}

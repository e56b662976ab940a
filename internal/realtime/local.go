package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"widget-chat-service/internal/models"
	"widget-chat-service/internal/observability"
)

// LocalBus is an in-process Bus.
type LocalBus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	// deliverMu keeps deliveries from interleaving so every subscriber observes
	// one global publish order.
	deliverMu sync.Mutex
	buffer    int
	logger    zerolog.Logger
}

// NewLocalBus creates a LocalBus whose subscriptions queue up to buffer events.
func NewLocalBus(buffer int, logger zerolog.Logger) *LocalBus {
	if buffer < 1 {
		buffer = 64
	}
	return &LocalBus{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Publish delivers the event to the topic's current subscribers.
func (b *LocalBus) Publish(_ context.Context, topic string, event models.ChatEvent) error {
	b.deliver(topic, event)
	return nil
}

// Subscribe registers handler for topic.
func (b *LocalBus) Subscribe(topic string, handler Handler, opts ...SubscribeOption) *Subscription {
	sub := &Subscription{
		topic:   topic,
		handler: handler,
		events:  make(chan models.ChatEvent, b.buffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	if _, ok := b.topics[topic]; !ok {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	b.mu.Unlock()

	go sub.run()
	return sub
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (b *LocalBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.remove(sub)
	sub.stop()
}

// Close stops every subscription.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	topics := b.topics
	b.topics = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, subs := range topics {
		for sub := range subs {
			sub.stop()
		}
	}
	return nil
}

// SubscriberCount reports subscribers on a topic.
func (b *LocalBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// DropTopic evicts every subscriber of topic as if it had fallen behind.
func (b *LocalBus) DropTopic(topic string) int {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	return b.dropEach(subs, "topic_unavailable")
}

// DropAll evicts every subscriber. Used when events may have been missed.
func (b *LocalBus) DropAll() int {
	b.mu.RLock()
	var subs []*Subscription
	for _, topicSubs := range b.topics {
		for sub := range topicSubs {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()
	return b.dropEach(subs, "transport_reset")
}

func (b *LocalBus) dropEach(subs []*Subscription, reason string) int {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	dropped := 0
	for _, sub := range subs {
		if b.drop(sub, reason) {
			dropped++
		}
	}
	return dropped
}

func (b *LocalBus) deliver(topic string, event models.ChatEvent) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.offer(event) {
			b.drop(sub, "queue_full")
		}
	}
}

func (b *LocalBus) drop(sub *Subscription, reason string) bool {
	b.remove(sub)
	if !sub.stop() {
		return false
	}
	observability.IncBusDrop(reason)
	b.logger.Warn().Str("topic", sub.topic).Str("reason", reason).Msg("realtime subscriber dropped")
	if sub.onDrop != nil {
		go sub.onDrop()
	}
	return true
}

func (b *LocalBus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
}

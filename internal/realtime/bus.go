// Package realtime fans chat events out to live subscribers.
//
// A Bus delivers events per topic. Each subscription owns a bounded queue and a
// goroutine, so a subscriber sees events in publish order. A subscriber that
// falls behind is dropped and notified instead of blocking publishers; it is
// expected to re-fetch state. There is no replay of events missed while
// disconnected.
package realtime

import (
	"context"
	"sync"

	"widget-chat-service/internal/models"
)

// Handler consumes events for one subscription. Calls are sequential.
type Handler func(models.ChatEvent)

// Bus is a topic based publish/subscribe transport.
type Bus interface {
	Publish(ctx context.Context, topic string, event models.ChatEvent) error
	Subscribe(topic string, handler Handler, opts ...SubscribeOption) *Subscription
	Unsubscribe(sub *Subscription)
	Close() error
}

// SubscribeOption customises a subscription.
type SubscribeOption func(*Subscription)

// OnDrop registers a callback fired once when the bus evicts a slow subscriber.
func OnDrop(fn func()) SubscribeOption {
	return func(s *Subscription) { s.onDrop = fn }
}

// WithBuffer overrides the bus default queue size.
func WithBuffer(n int) SubscribeOption {
	return func(s *Subscription) {
		if n > 0 {
			s.events = make(chan models.ChatEvent, n)
		}
	}
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	topic   string
	handler Handler
	events  chan models.ChatEvent
	onDrop  func()
	done    chan struct{}
	once    sync.Once
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Done is closed once the subscription stops delivering.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(ev)
		}
	}
}

// offer queues an event without blocking and reports whether it fit.
func (s *Subscription) offer(ev models.ChatEvent) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func (s *Subscription) stop() bool {
	stopped := false
	s.once.Do(func() {
		close(s.done)
		stopped = true
	})
	return stopped
}

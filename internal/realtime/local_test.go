package realtime

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []models.ChatEvent
}

func (r *recorder) handle(ev models.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []models.ChatEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ChatEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestLocalBusDeliversInPublishOrder(t *testing.T) {
	bus := NewLocalBus(256, zerolog.Nop())
	defer bus.Close()

	first, second := &recorder{}, &recorder{}
	bus.Subscribe("topic", first.handle)
	bus.Subscribe("topic", second.handle)

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, bus.Publish(context.Background(), "topic", models.ChatEvent{Type: "e", ChatID: strconv.Itoa(i)}))
	}

	require.Eventually(t, func() bool { return first.len() == n && second.len() == n }, time.Second, 5*time.Millisecond)
	for i, ev := range first.snapshot() {
		assert.Equal(t, strconv.Itoa(i), ev.ChatID)
	}
	assert.Equal(t, first.snapshot(), second.snapshot())
}

func TestLocalBusIsolatesTopics(t *testing.T) {
	bus := NewLocalBus(8, zerolog.Nop())
	defer bus.Close()

	a, b := &recorder{}, &recorder{}
	bus.Subscribe("a", a.handle)
	bus.Subscribe("b", b.handle)

	require.NoError(t, bus.Publish(context.Background(), "a", models.ChatEvent{Type: "x"}))

	require.Eventually(t, func() bool { return a.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return b.len() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLocalBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewLocalBus(8, zerolog.Nop())
	defer bus.Close()

	rec := &recorder{}
	sub := bus.Subscribe("topic", rec.handle)
	require.Equal(t, 1, bus.SubscriberCount("topic"))

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	assert.Equal(t, 0, bus.SubscriberCount("topic"))

	select {
	case <-sub.Done():
	default:
		t.Fatal("expected subscription to be done")
	}

	require.NoError(t, bus.Publish(context.Background(), "topic", models.ChatEvent{Type: "x"}))
	assert.Never(t, func() bool { return rec.len() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLocalBusDropsSlowSubscriber(t *testing.T) {
	bus := NewLocalBus(8, zerolog.Nop())
	defer bus.Close()

	block := make(chan struct{})
	defer close(block)
	dropped := make(chan struct{})

	slow := bus.Subscribe("topic", func(models.ChatEvent) { <-block }, WithBuffer(1), OnDrop(func() { close(dropped) }))
	fast := &recorder{}
	bus.Subscribe("topic", fast.handle)

	for i := 0; i < 4; i++ {
		require.NoError(t, bus.Publish(context.Background(), "topic", models.ChatEvent{Type: "x"}))
	}

	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("expected slow subscriber to be dropped")
	}
	<-slow.Done()
	assert.Equal(t, 1, bus.SubscriberCount("topic"))
	require.Eventually(t, func() bool { return fast.len() == 4 }, time.Second, 5*time.Millisecond)
}

func TestLocalBusCloseStopsSubscriptions(t *testing.T) {
	bus := NewLocalBus(8, zerolog.Nop())
	sub := bus.Subscribe("topic", func(models.ChatEvent) {})

	require.NoError(t, bus.Close())

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("expected subscription to stop on close")
	}
	assert.Equal(t, 0, bus.SubscriberCount("topic"))
}

func TestLocalBusDropAllSignalsEverySubscriber(t *testing.T) {
	bus := NewLocalBus(8, zerolog.Nop())
	defer bus.Close()

	var fired sync.WaitGroup
	fired.Add(2)
	a := bus.Subscribe("a", func(models.ChatEvent) {}, OnDrop(fired.Done))
	b := bus.Subscribe("b", func(models.ChatEvent) {}, OnDrop(fired.Done))

	assert.Equal(t, 2, bus.DropAll())

	done := make(chan struct{})
	go func() {
		fired.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected every subscriber to be notified")
	}
	<-a.Done()
	<-b.Done()
	assert.Equal(t, 0, bus.SubscriberCount("a"))
	assert.Equal(t, 0, bus.SubscriberCount("b"))
	assert.Equal(t, 0, bus.DropAll())
}

func TestLocalBusDropTopicLeavesOtherTopics(t *testing.T) {
	bus := NewLocalBus(8, zerolog.Nop())
	defer bus.Close()

	dropped := make(chan struct{})
	bus.Subscribe("a", func(models.ChatEvent) {}, OnDrop(func() { close(dropped) }))
	other := &recorder{}
	bus.Subscribe("b", other.handle)

	assert.Equal(t, 1, bus.DropTopic("a"))
	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("expected subscriber on a to be dropped")
	}

	require.NoError(t, bus.Publish(context.Background(), "b", models.ChatEvent{Type: "x"}))
	require.Eventually(t, func() bool { return other.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, bus.SubscriberCount("b"))
}

func TestLocalBusUnsubscribeDoesNotSignalDrop(t *testing.T) {
	bus := NewLocalBus(8, zerolog.Nop())
	defer bus.Close()

	dropped := make(chan struct{}, 1)
	sub := bus.Subscribe("a", func(models.ChatEvent) {}, OnDrop(func() { dropped <- struct{}{} }))
	bus.Unsubscribe(sub)

	assert.Equal(t, 0, bus.DropAll())
	select {
	case <-dropped:
		t.Fatal("unsubscribe must not be reported as a drop")
	case <-time.After(50 * time.Millisecond):
	}
}

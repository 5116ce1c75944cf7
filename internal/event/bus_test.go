package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPublishDeliversToTopicSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got []Event
	bus.Subscribe("analysis.run.completed", func(_ context.Context, e Event) {
		got = append(got, e)
	})
	bus.Subscribe("other.topic", func(_ context.Context, e Event) {
		t.Error("handler for unrelated topic was called")
	})

	bus.Publish(context.Background(), Event{
		Topic:   "analysis.run.completed",
		Source:  "analysis",
		Payload: map[string]any{"run_id": "r1"},
	})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Payload["run_id"] != "r1" {
		t.Errorf("payload = %v", got[0].Payload)
	}
}

func TestSubscribeAllSeesEveryTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var count int
	bus.SubscribeAll(func(_ context.Context, e Event) { count++ })

	ctx := context.Background()
	bus.Publish(ctx, Event{Topic: "a"})
	bus.Publish(ctx, Event{Topic: "b"})

	if count != 2 {
		t.Errorf("got %d deliveries, want 2", count)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var count int
	unsub := bus.Subscribe("t", func(_ context.Context, e Event) { count++ })

	ctx := context.Background()
	bus.Publish(ctx, Event{Topic: "t"})
	unsub()
	bus.Publish(ctx, Event{Topic: "t"})

	if count != 1 {
		t.Errorf("got %d deliveries, want 1", count)
	}
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var delivered bool
	bus.Subscribe("t", func(_ context.Context, e Event) { panic("bad handler") })
	bus.Subscribe("t", func(_ context.Context, e Event) { delivered = true })

	bus.Publish(context.Background(), Event{Topic: "t"})

	if !delivered {
		t.Error("panic in one handler blocked delivery to the next")
	}
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe("t", func(_ context.Context, e Event) { wg.Done() })

	bus.PublishAsync(context.Background(), Event{Topic: "t", Timestamp: time.Now()})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async event was not delivered")
	}
}

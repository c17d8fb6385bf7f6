package messaging

import (
	"context"
	"testing"
	"time"

	"agegate/internal/shared/events"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	if err := bus.Subscribe(ctx, NotificationsTopic, "test-cg", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, NotificationsTopic, events.Envelope{
		EventID:   "evt-1",
		EventType: "request_created",
		EntityID:  "owner-1",
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case event := <-received:
		if event.EventID != "evt-1" || event.EntityID != "owner-1" {
			t.Fatalf("wrong event delivered: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the published event")
	}
}

func TestBusNotifierReachesSubscriberInSameProcess(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	if err := bus.Subscribe(ctx, NotificationsTopic, "test-cg", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	notifier := BusNotifier{Bus: bus, SourceService: "agegate"}
	if err := notifier.Notify(ctx, "owner-1", "request_assigned", map[string]any{"request_id": "req-1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case event := <-received:
		if event.EventType != "request_assigned" || event.EntityID != "owner-1" {
			t.Fatalf("wrong notification delivered: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("notification was published but never delivered")
	}
}

package bus_test

import (
	"context"
	"testing"
	"time"

	"tailor/internal/bus"
	"tailor/internal/logging"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := bus.New(logging.NewNop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := b.Subscribe(ctx, bus.TopicRequirementsSubmitted)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(bus.TopicRequirementsSubmitted, bus.RequirementsSubmitted{Source: "url"})

	select {
	case msg := <-messages:
		var event bus.RequirementsSubmitted
		if err := bus.Decode(msg, &event); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if event.Source != "url" {
			t.Fatalf("unexpected event: %#v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishWithoutSubscriberDoesNotBlock(t *testing.T) {
	b := bus.New(logging.NewNop())
	defer b.Close()

	done := make(chan struct{})
	go func() {
		b.Publish(bus.TopicStageChanged, bus.StageChanged{SessionID: "sess-1", Stage: "analyzing"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscriber")
	}
}

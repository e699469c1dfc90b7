package broadcast

import (
	"testing"
	"time"

	"github.com/ralphorch/ralph/internal/domain"
)

func TestSubscribe_ReceivesOnlyMessagesAfterJoining(t *testing.T) {
	h := New(4)

	h.Publish(Message{Channel: "events", Message: "before"})

	ch := h.Subscribe()
	h.Publish(Message{Channel: "events", Message: "after"})

	select {
	case msg := <-ch:
		if msg.Message != "after" {
			t.Errorf("got %q, want %q", msg.Message, "after")
		}
	case <-time.After(time.Second):
		t.Fatal("expected to receive the message published after subscribing")
	}

	select {
	case msg := <-ch:
		t.Fatalf("unexpected second message: %+v", msg)
	default:
	}
}

func TestPublish_FanOutToMultipleSubscribers(t *testing.T) {
	h := New(4)
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish(Message{Channel: "events", Message: "hello"})

	for _, ch := range []chan Message{a, b} {
		select {
		case msg := <-ch:
			if msg.Message != "hello" {
				t.Errorf("got %q, want hello", msg.Message)
			}
		case <-time.After(time.Second):
			t.Fatal("expected every subscriber to receive the message")
		}
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	h := New(4)
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	_, ok := <-ch
	if ok {
		t.Error("expected the channel to be closed after Unsubscribe")
	}
}

func TestPublish_OverflowDropsOldestAndNotifiesLag(t *testing.T) {
	h := New(2)
	ch := h.Subscribe()

	h.Publish(Message{Message: "1"})
	h.Publish(Message{Message: "2"})
	h.Publish(Message{Message: "3"}) // overflow: drops "1", inserts a lag notice

	first := <-ch
	second := <-ch

	if first.Message != "2" {
		t.Errorf("expected the oldest surviving message to be %q, got %q", "2", first.Message)
	}
	if second.Channel != "system" || second.Message != "lag" {
		t.Errorf("expected a lag notice, got %+v", second)
	}

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra message: %+v", extra)
	default:
	}
}

func TestPublishEvent_WrapsInEventsEnvelope(t *testing.T) {
	h := New(4)
	ch := h.Subscribe()

	h.PublishEvent(domain.Event{ID: 1, Kind: domain.EventThreadCreated})

	msg := <-ch
	if msg.Channel != "events" {
		t.Errorf("Channel = %q, want events", msg.Channel)
	}
	if msg.Event == nil || msg.Event.Kind != domain.EventThreadCreated {
		t.Errorf("Event = %+v, want thread.created", msg.Event)
	}
}

package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func TestHubDeliversInOrderPerChannel(t *testing.T) {
	hub := NewHub(logger.Nop())
	actor := uuid.New()
	sub := hub.Subscribe(actor, 4)
	defer sub.Close()

	other := hub.Subscribe(uuid.New(), 4)
	defer other.Close()

	hub.Broadcast(Message{Channel: actor.String(), Event: EventProgressionUpdated})
	hub.Broadcast(Message{Channel: actor.String(), Event: EventLevelUp})

	if got := recvMessage(t, sub.C(), time.Second); got.Event != EventProgressionUpdated {
		t.Fatalf("first: got=%s", got.Event)
	}
	if got := recvMessage(t, sub.C(), time.Second); got.Event != EventLevelUp {
		t.Fatalf("second: got=%s", got.Event)
	}
	select {
	case m := <-other.C():
		t.Fatalf("other actor received %s", m.Event)
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(logger.Nop())
	actor := uuid.New()
	sub := hub.Subscribe(actor, 1)
	defer sub.Close()

	hub.Broadcast(Message{Channel: actor.String(), Event: EventStreakUpdated})
	hub.Broadcast(Message{Channel: actor.String(), Event: EventStreakClaimed})

	if got := recvMessage(t, sub.C(), time.Second); got.Event != EventStreakUpdated {
		t.Fatalf("kept: got=%s", got.Event)
	}
	select {
	case m := <-sub.C():
		t.Fatalf("second message should have been dropped, got %s", m.Event)
	default:
	}
}

func TestSubscriptionCloseIsDeterministic(t *testing.T) {
	hub := NewHub(logger.Nop())
	actor := uuid.New()
	sub := hub.Subscribe(actor, 4)
	if n := hub.Subscribers(actor.String()); n != 1 {
		t.Fatalf("subscribers: want=1 got=%d", n)
	}
	sub.Close()
	sub.Close()
	if n := hub.Subscribers(actor.String()); n != 0 {
		t.Fatalf("subscribers after close: want=0 got=%d", n)
	}
	hub.Broadcast(Message{Channel: actor.String(), Event: EventBadgeUnlocked})
	if _, ok := <-sub.C(); ok {
		t.Fatalf("outbound must be closed after Close")
	}
}

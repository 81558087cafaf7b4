package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/services"
)

type countingLoader struct {
	calls atomic.Int64
	err   error
}

func (l *countingLoader) View(_ context.Context, actorID uuid.UUID) (*services.ProgressionView, error) {
	n := l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return &services.ProgressionView{ActorID: actorID, XP: n}, nil
}

// racingLoader publishes a change while the first view is loading.
type racingLoader struct {
	hub   *realtime.Hub
	calls atomic.Int64
}

func (l *racingLoader) View(_ context.Context, actorID uuid.UUID) (*services.ProgressionView, error) {
	n := l.calls.Add(1)
	if n == 1 {
		l.hub.Broadcast(realtime.Message{Channel: actorID.String(), Event: realtime.EventProgressionUpdated})
	}
	return &services.ProgressionView{ActorID: actorID, XP: n}, nil
}

func newManager(t *testing.T, loader Loader) (*Manager, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(logger.Nop())
	m, err := NewManager(logger.Nop(), hub, loader, 8)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Shutdown)
	return m, hub
}

func recv(t *testing.T, s *Session) realtime.Message {
	t.Helper()
	select {
	case msg, ok := <-s.C():
		if !ok {
			t.Fatalf("session channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for session message")
	}
	return realtime.Message{}
}

func TestViewIsCachedUntilNotified(t *testing.T) {
	loader := &countingLoader{}
	m, hub := newManager(t, loader)
	ctx := context.Background()
	actor := uuid.New()

	s, err := m.Open(ctx, actor, uuid.New())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := s.View(ctx)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.XP != 1 || loader.calls.Load() != 1 {
		t.Fatalf("hydrated view should be served from cache: xp=%d calls=%d", v.XP, loader.calls.Load())
	}

	hub.Broadcast(realtime.Message{Channel: actor.String(), Event: realtime.EventProgressionUpdated})
	if got := recv(t, s); got.Event != realtime.EventProgressionUpdated {
		t.Fatalf("event: %s", got.Event)
	}
	v, err = s.View(ctx)
	if err != nil {
		t.Fatalf("View after notify: %v", err)
	}
	if v.XP != 2 {
		t.Fatalf("view not reloaded after notification: xp=%d", v.XP)
	}
}

func TestOpenReplacesSameSessionID(t *testing.T) {
	m, hub := newManager(t, &countingLoader{})
	ctx := context.Background()
	actor, sid := uuid.New(), uuid.New()

	first, err := m.Open(ctx, actor, sid)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := m.Open(ctx, actor, sid)
	if err != nil {
		t.Fatalf("Open again: %v", err)
	}
	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatalf("replaced session was not closed")
	}
	if m.Count() != 1 {
		t.Fatalf("sessions: want=1 got=%d", m.Count())
	}

	m.Release(first)
	if cur, ok := m.Get(sid); !ok || cur != second {
		t.Fatalf("releasing the replaced session removed its successor")
	}
	if n := hub.Subscribers(actor.String()); n != 1 {
		t.Fatalf("subscribers: want=1 got=%d", n)
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	m, hub := newManager(t, &countingLoader{})
	ctx := context.Background()
	actor, sid := uuid.New(), uuid.New()

	s, err := m.Open(ctx, actor, sid)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !m.Close(sid) {
		t.Fatalf("Close reported no session")
	}
	if m.Close(sid) {
		t.Fatalf("second Close found a session")
	}
	if n := hub.Subscribers(actor.String()); n != 0 {
		t.Fatalf("subscribers after close: %d", n)
	}
	if _, err := s.View(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("View on closed session: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-s.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("session channel never closed")
		}
	}
}

func TestOpenFailsWhenViewCannotLoad(t *testing.T) {
	m, hub := newManager(t, &countingLoader{err: errors.New("db down")})
	actor := uuid.New()
	if _, err := m.Open(context.Background(), actor, uuid.New()); err == nil {
		t.Fatalf("expected hydrate error")
	}
	if m.Count() != 0 || hub.Subscribers(actor.String()) != 0 {
		t.Fatalf("failed open left state behind")
	}
}

func TestOpenKeepsChangesPublishedWhileHydrating(t *testing.T) {
	hub := realtime.NewHub(logger.Nop())
	loader := &racingLoader{hub: hub}
	m, err := NewManager(logger.Nop(), hub, loader, 8)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Shutdown)
	ctx := context.Background()

	s, err := m.Open(ctx, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := recv(t, s); got.Event != realtime.EventProgressionUpdated {
		t.Fatalf("event: %s", got.Event)
	}
	v, err := s.View(ctx)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.XP != 2 {
		t.Fatalf("view hydrated during the change was kept: xp=%d", v.XP)
	}
}

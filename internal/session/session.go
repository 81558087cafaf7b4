package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/services"
)

const (
	DefaultViewCacheSize = 1024
	DefaultBuffer        = realtime.DefaultClientBuffer
)

var ErrClosed = errors.New("session closed")

// Loader builds an actor's progression view from storage.
type Loader interface {
	View(ctx context.Context, actorID uuid.UUID) (*services.ProgressionView, error)
}

// Manager owns the open sessions of this instance. A session is one
// authenticated client (one token session id) with a realtime subscription
// on its actor channel and a cached progression view.
type Manager struct {
	log      *logger.Logger
	hub      *realtime.Hub
	loader   Loader
	buffer   int
	views    *lru.Cache
	sessions *xsync.MapOf[uuid.UUID, *Session]
}

func NewManager(baseLog *logger.Logger, hub *realtime.Hub, loader Loader, cacheSize int) (*Manager, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultViewCacheSize
	}
	views, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		log:      baseLog.With("component", "SessionManager"),
		hub:      hub,
		loader:   loader,
		buffer:   DefaultBuffer,
		views:    views,
		sessions: xsync.NewMapOf[uuid.UUID, *Session](),
	}, nil
}

// Session is one open client. Messages arrive on C until the session is
// closed, at which point C is closed and Done fires.
type Session struct {
	ID      uuid.UUID
	ActorID uuid.UUID

	mgr  *Manager
	sub  *realtime.Subscription
	out  chan realtime.Message
	done chan struct{}
	once sync.Once
}

func (s *Session) C() <-chan realtime.Message { return s.out }

func (s *Session) Done() <-chan struct{} { return s.done }

// View returns the cached progression view, reloading it after any change
// notification.
func (s *Session) View(ctx context.Context) (*services.ProgressionView, error) {
	select {
	case <-s.done:
		return nil, ErrClosed
	default:
	}
	return s.mgr.view(ctx, s.ActorID)
}

// Open registers a session, replacing and closing any session already open
// under sessionID. The actor's view is hydrated before Open returns.
//
// The subscription is taken before hydrating and the pump starts after, so a
// change published while the view loads is still delivered and drops the
// view it may have made stale.
func (m *Manager) Open(ctx context.Context, actorID, sessionID uuid.UUID) (*Session, error) {
	if actorID == uuid.Nil || sessionID == uuid.Nil {
		return nil, errors.New("session: actor and session id are required")
	}
	sub := m.hub.Subscribe(actorID, m.buffer)
	if _, err := m.view(ctx, actorID); err != nil {
		sub.Close()
		return nil, err
	}

	s := &Session{
		ID:      sessionID,
		ActorID: actorID,
		mgr:     m,
		sub:     sub,
		out:     make(chan realtime.Message, m.buffer),
		done:    make(chan struct{}),
	}
	if prev, loaded := m.sessions.LoadAndStore(sessionID, s); loaded {
		m.log.Debug("replacing session", "session_id", sessionID, "actor_id", actorID)
		prev.close()
	}
	observability.Current().AddSessions(1)
	go s.pump()

	m.log.Info("session opened", "session_id", sessionID, "actor_id", actorID, "client_id", s.sub.ClientID())
	return s, nil
}

// Close ends the session registered under sessionID, if any.
func (m *Manager) Close(sessionID uuid.UUID) bool {
	s, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return false
	}
	s.close()
	return true
}

// Release closes s and unregisters it only if it is still the session
// registered under its id. Transports call it when their connection ends so
// a replaced session does not take its successor down.
func (m *Manager) Release(s *Session) {
	if s == nil {
		return
	}
	m.sessions.Compute(s.ID, func(cur *Session, loaded bool) (*Session, bool) {
		if !loaded {
			return cur, true
		}
		return cur, cur == s
	})
	s.close()
}

func (m *Manager) Get(sessionID uuid.UUID) (*Session, bool) {
	return m.sessions.Load(sessionID)
}

// Count returns the number of open sessions.
func (m *Manager) Count() int { return m.sessions.Size() }

// Invalidate drops the cached view of actorID.
func (m *Manager) Invalidate(actorID uuid.UUID) {
	m.views.Remove(actorID)
}

// Shutdown closes every open session.
func (m *Manager) Shutdown() {
	m.sessions.Range(func(id uuid.UUID, s *Session) bool {
		m.sessions.Delete(id)
		s.close()
		return true
	})
}

func (m *Manager) view(ctx context.Context, actorID uuid.UUID) (*services.ProgressionView, error) {
	if v, ok := m.views.Get(actorID); ok {
		return v.(*services.ProgressionView), nil
	}
	v, err := m.loader.View(ctx, actorID)
	if err != nil {
		return nil, err
	}
	m.views.Add(actorID, v)
	return v, nil
}

// pump forwards hub messages to the session, dropping the cached view
// before each one so a reader reacting to the message sees fresh state.
func (s *Session) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.sub.C():
			if !ok {
				return
			}
			s.mgr.views.Remove(s.ActorID)
			select {
			case s.out <- msg:
			case <-s.done:
				return
			default:
				observability.Current().IncRealtimeDrop("session")
				s.mgr.log.Warn("dropping session message; buffer full", "session_id", s.ID, "event", msg.Event)
			}
		}
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.sub.Close()
		s.mgr.views.Remove(s.ActorID)
		observability.Current().AddSessions(-1)
		s.mgr.log.Info("session closed", "session_id", s.ID, "actor_id", s.ActorID)
	})
}

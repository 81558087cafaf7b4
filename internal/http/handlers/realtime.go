package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/session"
)

const (
	sseHeartbeat = 15 * time.Second
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// RealtimeHandler attaches SSE and websocket transports to sessions. Every
// connection is keyed by the token's session id; reconnecting with the same
// session replaces the previous connection.
type RealtimeHandler struct {
	log      *logger.Logger
	sessions *session.Manager
	upgrader websocket.Upgrader
}

// NewRealtimeHandler accepts websocket upgrades from allowedOrigins. An
// empty list accepts any origin.
func NewRealtimeHandler(log *logger.Logger, sessions *session.Manager, allowedOrigins []string) *RealtimeHandler {
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	h := &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), sessions: sessions}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			if allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

func (h *RealtimeHandler) open(c *gin.Context) (*session.Session, bool) {
	rd, ok := actorFrom(c)
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Open(c.Request.Context(), rd.ActorID, rd.SessionID)
	if err != nil {
		response.RespondErr(c, err)
		return nil, false
	}
	return s, true
}

func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	s, ok := h.open(c)
	if !ok {
		return
	}
	defer h.sessions.Release(s)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("SSE client context done", "session_id", s.ID, "err", ctx.Err())
			return
		case <-s.Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			w.Flush()
		case msg, open := <-s.C():
			if !open {
				return
			}
			if err := writeSSE(w, msg); err != nil {
				h.log.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			w.Flush()
		}
	}
}

func writeSSE(w gin.ResponseWriter, msg realtime.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, b)
	return nil
}

// WebSocket is a send-only feed; inbound frames are read only to observe
// pongs and the close handshake.
func (h *RealtimeHandler) WebSocket(c *gin.Context) {
	s, ok := h.open(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade error", "error", err, "session_id", s.ID)
		h.sessions.Release(s)
		return
	}
	defer func() {
		h.sessions.Release(s)
		_ = conn.Close()
	}()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-readerDone:
			return
		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
				time.Now().Add(wsWriteWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case msg, open := <-s.C():
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", "error", err, "session_id", s.ID)
				return
			}
		}
	}
}

// Logout closes the caller's session and with it any open stream.
func (h *RealtimeHandler) Logout(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	closed := h.sessions.Close(rd.SessionID)
	response.RespondOK(c, gin.H{"logged_out": true, "session_closed": closed})
}

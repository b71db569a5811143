package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hypecast-live/hypecast/pkg/core/commentary"
	"github.com/hypecast-live/hypecast/pkg/core/hub"
	"github.com/hypecast-live/hypecast/pkg/core/session"
	"github.com/hypecast-live/hypecast/pkg/gateway/config"
)

// SessionFeed streams hub payloads for one session over a WebSocket. The
// commentary and detection endpoints share it and differ only in the hub and
// the terminal payload sent for unknown sessions.
type SessionFeed struct {
	Store  session.Store
	Hub    *hub.Hub
	Config config.Config
	Logger *slog.Logger

	// Terminal is sent once, then the socket closes, when the session id is
	// not in the store.
	Terminal func(sessionID string) any
}

// CommentaryTerminal is the unknown-session payload on the commentary feed.
// It uses the commentary wire schema so clients need no special casing.
func CommentaryTerminal(sessionID string) any {
	return commentary.Payload{Text: "session " + sessionID + " not found", EnergyLevel: 0, IsHighlight: false}
}

// DetectionTerminal is the unknown-session payload on the detection feed.
func DetectionTerminal(sessionID string) any {
	return map[string]string{"error": "session " + sessionID + " not found"}
}

func (h *SessionFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	sessionID := r.PathValue("id")
	if _, err := h.Store.Get(sessionID); err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout()))
		_ = conn.WriteJSON(h.Terminal(sessionID))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown session"),
			time.Now().Add(h.writeTimeout()))
		return
	}

	sub := h.Hub.Subscribe(sessionID)
	defer h.Hub.Unsubscribe(sessionID, sub)

	// Read pump: discard client frames, surface disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval())
	defer ping.Stop()

	for {
		select {
		case payload := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout()))
			if err := conn.WriteJSON(payload); err != nil {
				h.log().Debug("ws write failed", "session_id", sessionID, "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout())); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *SessionFeed) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	// No allowlist configured means same-host tooling and local dev only.
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h *SessionFeed) writeTimeout() time.Duration {
	if h.Config.WSWriteTimeout > 0 {
		return h.Config.WSWriteTimeout
	}
	return 5 * time.Second
}

func (h *SessionFeed) pingInterval() time.Duration {
	if h.Config.WSPingInterval > 0 {
		return h.Config.WSPingInterval
	}
	return 20 * time.Second
}

func (h *SessionFeed) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

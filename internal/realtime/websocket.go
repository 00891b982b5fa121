package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
)

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// normalCloseCodes are WebSocket close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// TokenValidator checks the session credential presented at handshake.
// Implemented by *auth.Manager.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// handshakeToken reads the credential from the "token" query parameter or
// the Authorization header.
func handshakeToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimSpace(r.Header.Get("Authorization"))
}

// HandleWebSocket authenticates the handshake and upgrades HTTP to WebSocket.
// Authentication failures are rejected before any session is registered.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Reject upgrades after the hub has stopped to prevent orphaned connections.
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	if h.tokens == nil {
		http.Error(w, "authentication unavailable", http.StatusUnauthorized)
		return
	}
	claims, err := h.tokens.Validate(handshakeToken(r))
	if err != nil {
		h.logger.Debug("websocket handshake rejected", "error", err)
		http.Error(w, "invalid or missing session token", http.StatusUnauthorized)
		return
	}

	h.mu.RLock()
	n := len(h.sessions)
	h.mu.RUnlock()
	if n >= h.maxSessions {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	s, err := h.Open(claims.UserID())
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	s.conn = conn

	h.sendTo(s, h.NewEvent(EventConnected, map[string]interface{}{
		"sessionId":   s.ID,
		"userId":      s.UserID,
		"connectedAt": s.ConnectedAt,
	}))

	go h.writePump(s)
	go h.readPump(s)
}

// readPump reads client events until the connection drops.
func (h *Hub) readPump(s *Session) {
	defer func() {
		h.Close(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				h.logger.Warn("websocket read error", "userId", s.UserID, "error", err)
			}
			return
		}
		h.dispatch(context.Background(), s, message)
	}
}

// writePump writes queued events and keepalive pings.
func (h *Hub) writePump(s *Session) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn("websocket write error", "userId", s.UserID, "error", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// Package realtime tracks live push channels per user and delivers events
// over WebSocket.
//
// A user may hold several sessions at once (phone, browser, second tab).
// The user counts as online until the last of them closes. Delivery is
// fire-and-forget: nothing is retried and nothing is replayed when a client
// reconnects, so clients re-fetch pending alerts after connecting.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/idgen"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/metrics"
)

// EventType names an outbound or inbound channel event.
type EventType string

// Outbound events.
const (
	EventConnected         EventType = "connected"
	EventAlertNew          EventType = "alert:new"
	EventAlertAcknowledged EventType = "alert:acknowledged"
	EventOTCSent           EventType = "otc:sent"
	EventNotification      EventType = "notification"
	EventSystemAlert       EventType = "system:alert"
	EventPong              EventType = "pong"
	EventError             EventType = "error"
)

// Inbound events.
const (
	EventPing             EventType = "ping"
	EventAlertAcknowledge EventType = "alert:acknowledge"
)

// Event is one message on a channel.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// inbound is the envelope clients send.
type inbound struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// InboundHandler processes a client event for the session's user. A returned
// error is reported back to that session as an "error" event.
type InboundHandler func(ctx context.Context, userID string, data json.RawMessage) error

// Relay forwards events to other service instances. An empty userID means
// every session.
type Relay interface {
	Forward(userID string, payload []byte) error
}

// MaxSessions is the default cap on concurrent sessions.
const MaxSessions = 10000

const sendBuffer = 64

var (
	ErrTooManySessions = errors.New("realtime: too many sessions")
	ErrUserRequired    = fmt.Errorf("%w: user id is required", faults.ErrValidation)
)

// Session is one open push channel. It is the handle returned by Open.
type Session struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	send chan []byte
	conn *websocket.Conn
}

// Hub is the connection registry.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	users    map[string]map[string]*Session

	broadcast   chan []byte
	handlers    map[EventType]InboundHandler
	relay       Relay
	tokens      TokenValidator
	logger      *slog.Logger
	done        chan struct{} // closed when Run exits; prevents upgrade race
	maxSessions int
	now         func() time.Time

	totalEvents   atomic.Int64
	totalSessions atomic.Int64
	peakSessions  atomic.Int64
}

// NewHub creates a new hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions:    make(map[string]*Session),
		users:       make(map[string]map[string]*Session),
		broadcast:   make(chan []byte, 256),
		handlers:    make(map[EventType]InboundHandler),
		logger:      logger,
		done:        make(chan struct{}),
		maxSessions: MaxSessions,
		now:         time.Now,
	}
}

// WithMaxSessions caps concurrent sessions.
func (h *Hub) WithMaxSessions(n int) *Hub {
	if n > 0 {
		h.maxSessions = n
	}
	return h
}

// WithTokens sets the validator for WebSocket handshakes.
func (h *Hub) WithTokens(v TokenValidator) *Hub {
	h.tokens = v
	return h
}

// WithNow overrides the clock.
func (h *Hub) WithNow(now func() time.Time) *Hub {
	h.now = now
	return h
}

// SetRelay installs a cross-instance relay. Call before serving traffic.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Handle registers the handler for an inbound event type.
func (h *Hub) Handle(t EventType, fn InboundHandler) {
	h.mu.Lock()
	h.handlers[t] = fn
	h.mu.Unlock()
}

// NewEvent stamps an event with the hub clock.
func (h *Hub) NewEvent(t EventType, data interface{}) *Event {
	return &Event{Type: t, Timestamp: h.now().UTC(), Data: data}
}

func (h *Hub) raisePeak(current int64) {
	for {
		peak := h.peakSessions.Load()
		if current <= peak || h.peakSessions.CompareAndSwap(peak, current) {
			return
		}
	}
}

// Open registers a new session for userID.
func (h *Hub) Open(userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	s := &Session{
		ID:          idgen.WithPrefix("ses_"),
		UserID:      userID,
		ConnectedAt: h.now().UTC(),
		send:        make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if len(h.sessions) >= h.maxSessions {
		h.mu.Unlock()
		return nil, ErrTooManySessions
	}
	h.sessions[s.ID] = s
	owned, ok := h.users[userID]
	if !ok {
		owned = make(map[string]*Session)
		h.users[userID] = owned
	}
	owned[s.ID] = s
	n, users, devices := len(h.sessions), len(h.users), len(owned)
	h.mu.Unlock()

	h.totalSessions.Add(1)
	h.raisePeak(int64(n))
	metrics.ActiveWebSocketSessions.Set(float64(n))
	metrics.OnlineUsers.Set(float64(users))
	h.logger.Info("session opened", "userId", userID, "sessionId", s.ID, "devices", devices)
	return s, nil
}

// Close removes a session. Closing an unknown or already closed session is a no-op.
func (h *Hub) Close(s *Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	if !h.removeLocked(s) {
		h.mu.Unlock()
		return
	}
	n, users := len(h.sessions), len(h.users)
	h.mu.Unlock()

	metrics.ActiveWebSocketSessions.Set(float64(n))
	metrics.OnlineUsers.Set(float64(users))
	h.logger.Info("session closed", "userId", s.UserID, "sessionId", s.ID)
}

// removeLocked must be called with h.mu held for writing.
func (h *Hub) removeLocked(s *Session) bool {
	if cur, ok := h.sessions[s.ID]; !ok || cur != s {
		return false
	}
	delete(h.sessions, s.ID)
	if owned, ok := h.users[s.UserID]; ok {
		delete(owned, s.ID)
		if len(owned) == 0 {
			delete(h.users, s.UserID)
		}
	}
	close(s.send) // writePump sends CloseMessage on closed channel
	return true
}

// IsOnline reports whether userID holds at least one open session.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// ChannelsFor returns the user's open sessions.
func (h *Hub) ChannelsFor(userID string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.users[userID]))
	for _, s := range h.users[userID] {
		out = append(out, s)
	}
	return out
}

// Publish pushes event to every open session of userID and reports whether
// at least one local session accepted it. An offline user is not an error.
func (h *Hub) Publish(userID string, event *Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "type", event.Type, "error", err)
		return false
	}
	h.totalEvents.Add(1)

	delivered := h.deliver(userID, payload)
	if !delivered {
		h.logger.Debug("no live channel for user", "userId", userID, "type", event.Type)
	}
	h.forward(userID, payload)
	return delivered
}

// Broadcast queues event for every open session. Run performs delivery.
func (h *Hub) Broadcast(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "type", event.Type, "error", err)
		return
	}
	h.enqueue(payload)
	h.forward("", payload)
}

func (h *Hub) enqueue(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast channel full, dropping event")
	}
}

func (h *Hub) forward(userID string, payload []byte) {
	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Forward(userID, payload); err != nil {
		h.logger.Warn("relay forward failed", "userId", userID, "error", err)
	}
}

// deliver writes payload to the user's sessions, evicting any whose buffer is full.
func (h *Hub) deliver(userID string, payload []byte) bool {
	h.mu.RLock()
	var slow []*Session
	delivered := false
	for _, s := range h.users[userID] {
		select {
		case s.send <- payload:
			delivered = true
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()
	h.evict(slow)
	return delivered
}

func (h *Hub) deliverAll(payload []byte) {
	h.totalEvents.Add(1)
	h.mu.RLock()
	var slow []*Session
	for _, s := range h.sessions {
		select {
		case s.send <- payload:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()
	h.evict(slow)
}

func (h *Hub) evict(slow []*Session) {
	for _, s := range slow {
		h.logger.Warn("evicting slow session", "userId", s.UserID, "sessionId", s.ID)
		h.Close(s)
	}
}

// sendTo writes one event to a single session.
func (h *Hub) sendTo(s *Session, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	_, open := h.sessions[s.ID]
	full := false
	if open {
		select {
		case s.send <- payload:
		default:
			full = true
		}
	}
	h.mu.RUnlock()
	if full {
		h.evict([]*Session{s})
	}
}

// dispatch handles one inbound client message.
func (h *Hub) dispatch(ctx context.Context, s *Session, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendTo(s, h.NewEvent(EventError, map[string]string{"error": "invalid_message", "message": "message must be a JSON object with a type"}))
		return
	}
	if msg.Type == EventPing {
		h.sendTo(s, h.NewEvent(EventPong, map[string]interface{}{"timestamp": h.now().UTC()}))
		return
	}

	h.mu.RLock()
	fn, ok := h.handlers[msg.Type]
	h.mu.RUnlock()
	if !ok {
		h.sendTo(s, h.NewEvent(EventError, map[string]string{"error": "unknown_event", "message": "unsupported event " + string(msg.Type)}))
		return
	}
	if err := fn(ctx, s.UserID, msg.Data); err != nil {
		h.sendTo(s, h.NewEvent(EventError, map[string]string{"error": faults.Kind(err), "message": err.Error()}))
	}
}

// Run delivers broadcasts until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("realtime hub shutting down, closing sessions")
			h.mu.Lock()
			for _, s := range h.sessions {
				h.removeLocked(s)
			}
			h.mu.Unlock()
			metrics.ActiveWebSocketSessions.Set(0)
			metrics.OnlineUsers.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case payload := <-h.broadcast:
			h.deliverAll(payload)
		}
	}
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"connectedSessions": len(h.sessions),
		"onlineUsers":       len(h.users),
		"totalEvents":       h.totalEvents.Load(),
		"totalSessions":     h.totalSessions.Load(),
		"peakSessions":      h.peakSessions.Load(),
	}
}

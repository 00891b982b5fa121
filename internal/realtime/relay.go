package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/idgen"
)

// RelaySubject carries events between service instances.
const RelaySubject = "nexora.realtime.events"

// natsConn is the subset of *nats.Conn the relay uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type relayMessage struct {
	Origin  string          `json:"origin"`
	UserID  string          `json:"userId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NATSRelay fans events out to every instance so a user connected to a
// different node still receives alerts raised here.
type NATSRelay struct {
	conn   natsConn
	hub    *Hub
	origin string
	sub    *nats.Subscription
	logger *slog.Logger
}

// ConnectNATS dials the NATS server with reconnects enabled.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("nexora"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NewNATSRelay creates a relay for hub.
func NewNATSRelay(conn natsConn, hub *Hub, logger *slog.Logger) *NATSRelay {
	return &NATSRelay{
		conn:   conn,
		hub:    hub,
		origin: idgen.WithPrefix("node_"),
		logger: logger,
	}
}

// Start subscribes to the relay subject and installs the relay on the hub.
func (r *NATSRelay) Start() error {
	sub, err := r.conn.Subscribe(RelaySubject, r.receive)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", RelaySubject, err)
	}
	r.sub = sub
	r.hub.SetRelay(r)
	r.logger.Info("realtime relay started", "subject", RelaySubject, "origin", r.origin)
	return nil
}

// Stop detaches the relay from the hub and unsubscribes.
func (r *NATSRelay) Stop() error {
	r.hub.SetRelay(nil)
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}

// Forward implements Relay.
func (r *NATSRelay) Forward(userID string, payload []byte) error {
	data, err := json.Marshal(relayMessage{Origin: r.origin, UserID: userID, Payload: payload})
	if err != nil {
		return err
	}
	return r.conn.Publish(RelaySubject, data)
}

func (r *NATSRelay) receive(msg *nats.Msg) {
	var m relayMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		r.logger.Warn("dropping malformed relay message", "error", err)
		return
	}
	if m.Origin == r.origin {
		return
	}
	if m.UserID == "" {
		r.hub.deliverAll(m.Payload)
		return
	}
	r.hub.deliver(m.UserID, m.Payload)
}

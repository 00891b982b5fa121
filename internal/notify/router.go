package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/circuitbreaker"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/metrics"
)

// DeliveryTimeout bounds one channel send.
const DeliveryTimeout = 10 * time.Second

// Router builds envelopes and fires the selected channels asynchronously.
type Router struct {
	mu       sync.RWMutex
	senders  map[Channel]Sender
	contacts ContactBook
	breaker  *circuitbreaker.Breaker
	logger   *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewRouter creates a router. contacts may be nil.
func NewRouter(contacts ContactBook, breaker *circuitbreaker.Breaker, logger *slog.Logger) *Router {
	if breaker == nil {
		breaker = circuitbreaker.New(5, 30*time.Second)
	}
	return &Router{
		senders:  make(map[Channel]Sender),
		contacts: contacts,
		breaker:  breaker,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock.
func (r *Router) WithNow(now func() time.Time) *Router {
	r.now = now
	return r
}

// Register installs the sender for a channel. A channel without a sender
// is still flagged in envelopes but skipped on delivery.
func (r *Router) Register(ch Channel, s Sender) {
	r.mu.Lock()
	r.senders[ch] = s
	r.mu.Unlock()
}

// Route returns the envelope for req and starts delivery on each selected
// channel. It never blocks on providers.
func (r *Router) Route(ctx context.Context, req Request) *Envelope {
	priority := ParsePriority(req.Priority)
	payload := req.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	env := &Envelope{
		ID:            uuid.NewString(),
		SchemaVersion: SchemaVersion,
		Type:          req.Type,
		Priority:      priority,
		Timestamp:     r.now().UTC(),
		Title:         req.Title,
		Body:          req.Body,
		Payload:       payload,
		Channels:      Select(priority, req.TargetChannel),
	}

	detached := context.WithoutCancel(ctx)
	for _, ch := range env.Channels.List() {
		r.mu.RLock()
		sender := r.senders[ch]
		r.mu.RUnlock()
		if sender == nil {
			metrics.NotificationsSentTotal.WithLabelValues(string(ch), "disabled").Inc()
			continue
		}
		r.wg.Add(1)
		go r.deliver(detached, ch, sender, req.UserID, env)
	}
	return env
}

// Wait blocks until in-flight deliveries finish.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) deliver(ctx context.Context, ch Channel, sender Sender, userID string, env *Envelope) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic in notification sender", "channel", ch, "panic", p)
			metrics.NotificationsSentTotal.WithLabelValues(string(ch), "failed").Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, DeliveryTimeout)
	defer cancel()

	msg := &Message{UserID: userID, Envelope: env}
	if r.contacts != nil {
		c, err := r.contacts.Contact(ctx, userID)
		if err != nil {
			r.logger.Warn("contact lookup failed", "userId", userID, "channel", ch, "error", err)
		}
		msg.Contact = c
	}

	var sendErr error
	err := r.breaker.Execute(string(ch), func() error {
		sendErr = sender.Send(ctx, msg)
		if errors.Is(sendErr, ErrNoRecipient) {
			return nil
		}
		return sendErr
	})

	result := "sent"
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		result = "circuit_open"
		r.logger.Warn("notification channel circuit open", "channel", ch, "notificationId", env.ID)
	case err != nil:
		result = "failed"
		r.logger.Error("notification delivery failed", "channel", ch, "userId", userID, "notificationId", env.ID, "error", err)
	case errors.Is(sendErr, ErrNoRecipient):
		result = "skipped"
		r.logger.Debug("no recipient for channel", "channel", ch, "userId", userID)
	default:
		r.logger.Info("notification sent", "channel", ch, "userId", userID, "notificationId", env.ID)
	}
	metrics.NotificationsSentTotal.WithLabelValues(string(ch), result).Inc()
}

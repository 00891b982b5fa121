// Package notify routes alert notifications to delivery channels by priority.
//
// Every notification goes to push. Critical notifications, or ones that ask
// for it explicitly, also go out by SMS. High and critical ones also go out
// by email. Route always returns the same normalized Envelope for a request;
// what happens when the channels actually fire never changes it.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// SchemaVersion is stamped on every envelope.
const SchemaVersion = "1.0"

// Priority of a notification.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority maps s to a Priority. Unknown values are normal.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityCritical:
		return PriorityCritical
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// Channel is a delivery channel.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// ErrNoRecipient means the user has no address for a channel. It is a
// skipped delivery, not a provider failure.
var ErrNoRecipient = errors.New("notify: no recipient address for channel")

// Channels flags which channels a notification selects.
type Channels struct {
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

// List returns the selected channels in delivery order.
func (c Channels) List() []Channel {
	var out []Channel
	if c.Push {
		out = append(out, ChannelPush)
	}
	if c.SMS {
		out = append(out, ChannelSMS)
	}
	if c.Email {
		out = append(out, ChannelEmail)
	}
	return out
}

// Select picks channels for a priority and an optional explicit target.
func Select(p Priority, targetChannel string) Channels {
	return Channels{
		Push:  true,
		SMS:   p == PriorityCritical || strings.EqualFold(targetChannel, string(ChannelSMS)),
		Email: p == PriorityHigh || p == PriorityCritical,
	}
}

// Request describes one notification for a user.
type Request struct {
	UserID        string
	Type          string
	Priority      string
	Title         string
	Body          string
	Payload       map[string]interface{}
	TargetChannel string
}

// Envelope is the normalized notification emitted for every request.
type Envelope struct {
	ID            string                 `json:"id"`
	SchemaVersion string                 `json:"schemaVersion"`
	Type          string                 `json:"type"`
	Priority      Priority               `json:"priority"`
	Timestamp     time.Time              `json:"timestamp"`
	Title         string                 `json:"title,omitempty"`
	Body          string                 `json:"body,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Channels      Channels               `json:"channels"`
}

// Contact holds a user's delivery addresses.
type Contact struct {
	Phone        string   `json:"phone,omitempty"`
	Email        string   `json:"email,omitempty"`
	DeviceTokens []string `json:"deviceTokens,omitempty"`
}

// ContactBook resolves a user's addresses.
type ContactBook interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}

// Message is what a Sender delivers.
type Message struct {
	UserID   string
	Contact  Contact
	Envelope *Envelope
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// MemoryContacts is an in-process ContactBook.
type MemoryContacts struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

var _ ContactBook = (*MemoryContacts)(nil)

// NewMemoryContacts creates an empty contact book.
func NewMemoryContacts() *MemoryContacts {
	return &MemoryContacts{contacts: make(map[string]Contact)}
}

// Set replaces the user's addresses.
func (m *MemoryContacts) Set(userID string, c Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.DeviceTokens = append([]string(nil), c.DeviceTokens...)
	m.contacts[userID] = c
}

// Contact returns the user's addresses, or an empty Contact.
func (m *MemoryContacts) Contact(_ context.Context, userID string) (Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.contacts[userID]
	c.DeviceTokens = append([]string(nil), c.DeviceTokens...)
	return c, nil
}

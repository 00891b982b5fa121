package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/circuitbreaker"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	msgs []*Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type panicSender struct{}

func (panicSender) Send(context.Context, *Message) error { panic("boom") }

func newTestRouter(contacts ContactBook) *Router {
	return NewRouter(contacts, circuitbreaker.New(2, time.Minute), logging.Discard()).
		WithNow(func() time.Time { return testNow })
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		priority Priority
		target   string
		want     Channels
	}{
		{"normal", PriorityNormal, "", Channels{Push: true}},
		{"high adds email", PriorityHigh, "", Channels{Push: true, Email: true}},
		{"critical adds sms and email", PriorityCritical, "", Channels{Push: true, SMS: true, Email: true}},
		{"explicit sms", PriorityNormal, "sms", Channels{Push: true, SMS: true}},
		{"explicit sms on high", PriorityHigh, "SMS", Channels{Push: true, SMS: true, Email: true}},
		{"other target ignored", PriorityNormal, "email", Channels{Push: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.priority, tt.target))
		})
	}
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityCritical, ParsePriority(" Critical "))
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityNormal, ParsePriority("normal"))
	assert.Equal(t, PriorityNormal, ParsePriority("urgent-ish"))
	assert.Equal(t, PriorityNormal, ParsePriority(""))
}

func TestRoute_Envelope(t *testing.T) {
	r := newTestRouter(nil)

	env := r.Route(context.Background(), Request{
		UserID:   "user-1",
		Type:     "THREAT_ALERT",
		Priority: "weird",
		Title:    "Suspicious caller",
		Payload:  map[string]interface{}{"alertId": "alrt_1"},
	})
	r.Wait()

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, "THREAT_ALERT", env.Type)
	assert.Equal(t, PriorityNormal, env.Priority)
	assert.Equal(t, testNow, env.Timestamp)
	assert.Equal(t, Channels{Push: true}, env.Channels)
	assert.Equal(t, "alrt_1", env.Payload["alertId"])
}

func TestRoute_FiresSelectedChannels(t *testing.T) {
	contacts := NewMemoryContacts()
	contacts.Set("user-1", Contact{Phone: "+15550100", Email: "a@b.com"})
	r := newTestRouter(contacts)

	push, sms, email := &recordingSender{}, &recordingSender{}, &recordingSender{}
	r.Register(ChannelPush, push)
	r.Register(ChannelSMS, sms)
	r.Register(ChannelEmail, email)

	r.Route(context.Background(), Request{UserID: "user-1", Type: "THREAT_ALERT", Priority: "high"})
	r.Wait()

	assert.Equal(t, 1, push.count())
	assert.Equal(t, 0, sms.count())
	require.Equal(t, 1, email.count())
	assert.Equal(t, "a@b.com", email.msgs[0].Contact.Email)
}

func TestRoute_FailuresDoNotChangeEnvelope(t *testing.T) {
	r := newTestRouter(nil)
	r.Register(ChannelPush, &recordingSender{err: errors.New("push down")})
	r.Register(ChannelSMS, panicSender{})

	req := Request{UserID: "user-1", Type: "THREAT_ALERT", Priority: "critical"}
	env := r.Route(context.Background(), req)
	r.Wait()

	assert.Equal(t, Channels{Push: true, SMS: true, Email: true}, env.Channels)
	assert.Equal(t, PriorityCritical, env.Priority)
}

func TestRoute_BreakerOpensOnRepeatedFailures(t *testing.T) {
	breaker := circuitbreaker.New(2, time.Minute)
	r := NewRouter(nil, breaker, logging.Discard())
	failing := &recordingSender{err: errors.New("twilio 500")}
	r.Register(ChannelSMS, failing)

	for i := 0; i < 4; i++ {
		r.Route(context.Background(), Request{UserID: "user-1", Priority: "critical"})
		r.Wait()
	}
	assert.Equal(t, 2, failing.count(), "open circuit stops calling the provider")
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State("sms"))
}

func TestRoute_NoRecipientDoesNotTripBreaker(t *testing.T) {
	breaker := circuitbreaker.New(1, time.Minute)
	r := NewRouter(nil, breaker, logging.Discard())
	r.Register(ChannelSMS, &recordingSender{err: ErrNoRecipient})

	r.Route(context.Background(), Request{UserID: "user-1", Priority: "critical"})
	r.Wait()
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State("sms"))
}

func TestRoute_SurvivesCancelledContext(t *testing.T) {
	r := newTestRouter(nil)
	push := &recordingSender{}
	r.Register(ChannelPush, push)

	ctx, cancel := context.WithCancel(context.Background())
	r.Route(ctx, Request{UserID: "user-1"})
	cancel()
	r.Wait()
	assert.Equal(t, 1, push.count())
}

func TestMemoryContacts_Copies(t *testing.T) {
	c := NewMemoryContacts()
	tokens := []string{"tok-1"}
	c.Set("u", Contact{DeviceTokens: tokens})
	tokens[0] = "mutated"

	got, err := c.Contact(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, got.DeviceTokens)

	empty, err := c.Contact(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty.Phone)
}

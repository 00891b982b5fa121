package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"google.golang.org/api/option"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/realtime"
)

// maxSMSLength keeps a message within two concatenated SMS segments.
const maxSMSLength = 306

// --- Live push over the realtime hub ---

// Publisher pushes events to a user's live sessions. Implemented by *realtime.Hub.
type Publisher interface {
	Publish(userID string, event *realtime.Event) bool
}

// LiveSender pushes the envelope as a "notification" event on open sessions.
type LiveSender struct {
	hub Publisher
}

// NewLiveSender creates a realtime push sender.
func NewLiveSender(hub Publisher) *LiveSender {
	return &LiveSender{hub: hub}
}

// Send implements Sender. An offline user yields ErrNoRecipient.
func (s *LiveSender) Send(_ context.Context, msg *Message) error {
	ev := &realtime.Event{Type: realtime.EventNotification, Timestamp: msg.Envelope.Timestamp, Data: msg.Envelope}
	if !s.hub.Publish(msg.UserID, ev) {
		return ErrNoRecipient
	}
	return nil
}

// --- Mobile push over Firebase Cloud Messaging ---

type fcmClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender delivers to the user's registered devices.
type FCMSender struct {
	client fcmClient
}

// NewFCMSender initializes a Firebase app from a service-account file.
func NewFCMSender(ctx context.Context, credentialsPath string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMSender{client: client}, nil
}

// Send implements Sender.
func (s *FCMSender) Send(ctx context.Context, msg *Message) error {
	if len(msg.Contact.DeviceTokens) == 0 {
		return ErrNoRecipient
	}
	env := msg.Envelope
	data := map[string]string{
		"id":       env.ID,
		"type":     env.Type,
		"priority": string(env.Priority),
	}
	for k, v := range env.Payload {
		data[k] = fmt.Sprintf("%v", v)
	}
	androidPriority := "normal"
	if env.Priority != PriorityNormal {
		androidPriority = "high"
	}

	resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       msg.Contact.DeviceTokens,
		Notification: &messaging.Notification{Title: env.Title, Body: env.Body},
		Data:         data,
		Android:      &messaging.AndroidConfig{Priority: androidPriority},
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	if resp.SuccessCount == 0 {
		return fmt.Errorf("fcm send: all %d device tokens failed", resp.FailureCount)
	}
	return nil
}

// --- SMS over Twilio ---

type twilioMessages interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers SMS through the Twilio Messages API.
type TwilioSender struct {
	api  twilioMessages
	from string
}

// NewTwilioSender creates an SMS sender from account credentials.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from}
}

// Send implements Sender.
func (s *TwilioSender) Send(_ context.Context, msg *Message) error {
	if msg.Contact.Phone == "" {
		return ErrNoRecipient
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.Contact.Phone)
	params.SetFrom(s.from)
	params.SetBody(smsBody(msg.Envelope))

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}

func smsBody(env *Envelope) string {
	body := "Nexora: " + env.Title
	if env.Body != "" {
		body += " - " + env.Body
	}
	if r := []rune(body); len(r) > maxSMSLength {
		body = string(r[:maxSMSLength-3]) + "..."
	}
	return body
}

// --- Email over SMTP ---

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers plain-text email.
type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	from     string
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTPSender creates an email sender. Empty username disables auth.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", host, port),
		auth:     auth,
		from:     from,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(_ context.Context, msg *Message) error {
	if msg.Contact.Email == "" {
		return ErrNoRecipient
	}
	if err := s.sendMail(s.addr, s.auth, s.from, []string{msg.Contact.Email}, s.compose(msg.Contact.Email, msg.Envelope)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) compose(to string, env *Envelope) []byte {
	subject := env.Title
	if subject == "" {
		subject = "Nexora security notification"
	}
	if env.Priority == PriorityCritical {
		subject = "[URGENT] " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "X-Nexora-Notification-Id: %s\r\n", env.ID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(env.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

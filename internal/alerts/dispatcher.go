package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/idgen"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/metrics"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/notify"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/realtime"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/traces"
)

// Publisher pushes events to a user's live sessions. Implemented by *realtime.Hub.
type Publisher interface {
	Publish(userID string, event *realtime.Event) bool
}

// Router picks fallback channels for an alert. Implemented by *notify.Router.
type Router interface {
	Route(ctx context.Context, req notify.Request) *notify.Envelope
}

// RaiseRequest describes one alert.
type RaiseRequest struct {
	UserID        string
	AlertType     string
	FromEntity    string
	RiskLevel     string
	RiskScore     int
	Category      string
	Message       string
	TargetChannel string
}

// Dispatcher raises, delivers and acknowledges alerts.
type Dispatcher struct {
	store  Store
	hub    Publisher
	router Router
	logger *slog.Logger
	now    func() time.Time
}

var _ risk.AlertTrigger = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. hub may be nil when no live channel exists.
func NewDispatcher(store Store, hub Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, hub: hub, logger: logger, now: time.Now}
}

// WithRouter enables fallback channel routing.
func (d *Dispatcher) WithRouter(r Router) *Dispatcher {
	d.router = r
	return d
}

// WithNow overrides the clock.
func (d *Dispatcher) WithNow(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// PriorityFor maps a risk level to a notification priority.
func PriorityFor(level string) notify.Priority {
	switch level {
	case string(risk.LevelHighRisk):
		return notify.PriorityCritical
	case string(risk.LevelSuspicious):
		return notify.PriorityHigh
	default:
		return notify.PriorityNormal
	}
}

// Raise stores a pending alert for the user and pushes it to every open
// channel. The returned bool reports whether at least one live channel took
// it; an offline user is not an error and the alert stays pending.
func (d *Dispatcher) Raise(ctx context.Context, req RaiseRequest) (*Alert, bool, error) {
	if req.UserID == "" {
		return nil, false, ErrUserRequired
	}
	if !alertTypeRegex.MatchString(req.AlertType) {
		return nil, false, ErrInvalidAlertType
	}

	ctx, span := traces.StartSpan(ctx, "alerts.Raise",
		traces.UserID(req.UserID), traces.AlertType(req.AlertType), traces.RiskLevel(req.RiskLevel))
	defer span.End()

	now := d.now().UTC()
	a := Alert{
		ID:         "alrt_" + idgen.NewAt(now),
		AlertType:  req.AlertType,
		FromEntity: req.FromEntity,
		RiskLevel:  req.RiskLevel,
		RiskScore:  req.RiskScore,
		Category:   req.Category,
		Message:    req.Message,
		Priority:   string(PriorityFor(req.RiskLevel)),
		CreatedAt:  now,
	}
	if err := d.store.AppendPending(ctx, req.UserID, a); err != nil {
		return nil, false, fmt.Errorf("append pending alert: %w", err)
	}

	delivered := false
	if d.hub != nil {
		delivered = d.hub.Publish(req.UserID, &realtime.Event{
			Type:      realtime.EventAlertNew,
			Timestamp: now,
			Data:      map[string]interface{}{"alert": a},
		})
	}
	metrics.AlertsRaisedTotal.WithLabelValues(req.AlertType, strconv.FormatBool(delivered)).Inc()
	logging.L(ctx).Info("alert raised",
		"userId", req.UserID, "alertId", a.ID, "type", a.AlertType, "priority", a.Priority, "delivered", delivered)

	if d.router != nil {
		d.router.Route(ctx, notify.Request{
			UserID:        req.UserID,
			Type:          a.AlertType,
			Priority:      a.Priority,
			Title:         alertTitle(a),
			Body:          a.Message,
			TargetChannel: req.TargetChannel,
			Payload: map[string]interface{}{
				"alertId":    a.ID,
				"fromEntity": a.FromEntity,
				"riskLevel":  a.RiskLevel,
				"riskScore":  a.RiskScore,
				"category":   a.Category,
			},
		})
	}
	return &a, delivered, nil
}

func alertTitle(a Alert) string {
	switch a.RiskLevel {
	case string(risk.LevelHighRisk):
		return "High-risk contact detected"
	case string(risk.LevelSuspicious):
		return "Suspicious contact detected"
	default:
		return "Security notice"
	}
}

// Acknowledge records the user's action on a pending alert, moves it to
// history and tells the user's other sessions.
func (d *Dispatcher) Acknowledge(ctx context.Context, userID, alertID, action string) (*Alert, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	action = strings.ToLower(strings.TrimSpace(action))
	if !validAction(action) {
		return nil, ErrInvalidAction
	}

	a, err := d.store.RemovePending(ctx, userID, alertID)
	if err != nil {
		return nil, err
	}
	now := d.now().UTC()
	a.Acknowledged = true
	a.AcknowledgedAt = &now
	a.Action = action

	if err := d.store.AppendHistory(ctx, userID, a); err != nil {
		return nil, fmt.Errorf("append alert history: %w", err)
	}

	if d.hub != nil {
		d.hub.Publish(userID, &realtime.Event{
			Type:      realtime.EventAlertAcknowledged,
			Timestamp: now,
			Data:      map[string]string{"alertId": a.ID, "action": action},
		})
	}
	metrics.AlertsAcknowledgedTotal.WithLabelValues(action).Inc()
	logging.L(ctx).Info("alert acknowledged", "userId", userID, "alertId", a.ID, "action", action)
	return &a, nil
}

// HandleAcknowledge processes an inbound "alert:acknowledge" channel event.
func (d *Dispatcher) HandleAcknowledge(ctx context.Context, userID string, data json.RawMessage) error {
	var body struct {
		AlertID string `json:"alertId"`
		Action  string `json:"action"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.AlertID == "" {
		return fmt.Errorf("%w: alertId and action are required", faults.ErrValidation)
	}
	_, err := d.Acknowledge(ctx, userID, body.AlertID, body.Action)
	return err
}

// Pending lists the user's unacknowledged alerts, newest first.
func (d *Dispatcher) Pending(ctx context.Context, userID string) ([]Alert, error) {
	return d.store.ListPending(ctx, userID)
}

// History lists the user's acknowledged alerts, newest first.
func (d *Dispatcher) History(ctx context.Context, userID string, limit int) ([]Alert, error) {
	return d.store.ListHistory(ctx, userID, limit)
}

// Protect registers userID to be alerted when rawEntity is found high risk.
// An empty alertTypes subscribes to threat alerts.
func (d *Dispatcher) Protect(ctx context.Context, userID, rawEntity string, alertTypes []string) (*Protection, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if err := entity.Validate(rawEntity); err != nil {
		return nil, err
	}
	types := dedupe(alertTypes)
	if len(types) == 0 {
		types = []string{TypeThreat}
	}
	for _, t := range types {
		if !alertTypeRegex.MatchString(t) {
			return nil, ErrInvalidAlertType
		}
	}

	p := Protection{Entity: entity.Normalize(rawEntity), AlertTypes: types, CreatedAt: d.now().UTC()}
	if err := d.store.PutProtection(ctx, userID, p); err != nil {
		return nil, err
	}
	logging.L(ctx).Info("protection registered", "userId", userID, "entity", p.Entity)
	return &p, nil
}

// Unprotect removes the user's registration for rawEntity.
func (d *Dispatcher) Unprotect(ctx context.Context, userID, rawEntity string) error {
	if userID == "" {
		return ErrUserRequired
	}
	if err := entity.Validate(rawEntity); err != nil {
		return err
	}
	return d.store.DeleteProtection(ctx, userID, entity.Normalize(rawEntity))
}

// Protections lists the user's registrations.
func (d *Dispatcher) Protections(ctx context.Context, userID string) ([]Protection, error) {
	return d.store.ListProtections(ctx, userID)
}

// ThreatDetected implements risk.AlertTrigger. It alerts the requesting user
// and every user protecting the entity, once each.
func (d *Dispatcher) ThreatDetected(ctx context.Context, userID string, result *risk.Result) {
	logger := logging.L(ctx)
	recipients := []string{userID}
	protectors, err := d.store.Protectors(ctx, result.TargetEntity, TypeThreat)
	if err != nil {
		logger.Warn("protector lookup failed", "entity", result.TargetEntity, "error", err)
	}
	recipients = dedupe(append(recipients, protectors...))

	msg := threatMessage(result)
	for _, uid := range recipients {
		_, _, err := d.Raise(ctx, RaiseRequest{
			UserID:     uid,
			AlertType:  TypeThreat,
			FromEntity: result.TargetEntity,
			RiskLevel:  string(result.RiskLevel),
			RiskScore:  result.Score,
			Category:   result.TopCategory,
			Message:    msg,
		})
		if err != nil && !errors.Is(err, ErrUserRequired) {
			logger.Error("failed to raise threat alert", "userId", uid, "error", err)
		}
	}
}

func threatMessage(r *risk.Result) string {
	noun := "reports"
	if r.TotalReports == 1 {
		noun = "report"
	}
	msg := fmt.Sprintf("%s has %d recent fraud %s", r.TargetEntity, r.TotalReports, noun)
	if r.TopCategory != "" {
		msg += fmt.Sprintf(", mostly %s", r.TopCategory)
	}
	return msg + ". Do not share codes or send money."
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

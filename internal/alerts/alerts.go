// Package alerts turns risk results into per-user alerts, keeps them pending
// until the user acts on them, and pushes them to the user's live channels.
package alerts

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
)

// TypeThreat is raised when a checked entity bands high_risk.
const TypeThreat = "THREAT_ALERT"

// Default list caps.
const (
	DefaultPendingCap = 100
	DefaultHistoryCap = 500
)

// Acknowledgement actions.
const (
	ActionBlocked   = "blocked"
	ActionAllowed   = "allowed"
	ActionReported  = "reported"
	ActionDismissed = "dismissed"
)

// Actions lists the accepted acknowledgement actions.
var Actions = []string{ActionBlocked, ActionAllowed, ActionReported, ActionDismissed}

var alertTypeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,47}$`)

var (
	ErrAlertNotFound      = fmt.Errorf("alerts: alert %w", faults.ErrNotFound)
	ErrProtectionNotFound = fmt.Errorf("alerts: protection %w", faults.ErrNotFound)
	ErrInvalidAction      = fmt.Errorf("%w: action must be one of blocked, allowed, reported, dismissed", faults.ErrValidation)
	ErrInvalidAlertType   = fmt.Errorf("%w: alert type must be upper snake case", faults.ErrValidation)
	ErrUserRequired       = fmt.Errorf("%w: user id is required", faults.ErrValidation)
)

// Alert is a warning raised for one user.
type Alert struct {
	ID             string     `json:"id"`
	AlertType      string     `json:"alertType"`
	FromEntity     string     `json:"fromEntity"`
	RiskLevel      string     `json:"riskLevel"`
	RiskScore      int        `json:"riskScore"`
	Category       string     `json:"category,omitempty"`
	Message        string     `json:"message"`
	Priority       string     `json:"priority"`
	CreatedAt      time.Time  `json:"createdAt"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	Action         string     `json:"action,omitempty"`
}

// Protection registers a user to be alerted about an entity.
type Protection struct {
	Entity     string    `json:"entity"`
	AlertTypes []string  `json:"alertTypes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Covers reports whether p subscribes to alertType.
func (p Protection) Covers(alertType string) bool {
	for _, t := range p.AlertTypes {
		if t == alertType {
			return true
		}
	}
	return false
}

// Store is the user-profile collaborator holding pending alerts, alert
// history and protection registrations. Lists are returned newest first.
type Store interface {
	AppendPending(ctx context.Context, userID string, a Alert) error
	ListPending(ctx context.Context, userID string) ([]Alert, error)
	// RemovePending deletes and returns the alert, or ErrAlertNotFound.
	RemovePending(ctx context.Context, userID, alertID string) (Alert, error)
	AppendHistory(ctx context.Context, userID string, a Alert) error
	ListHistory(ctx context.Context, userID string, limit int) ([]Alert, error)

	PutProtection(ctx context.Context, userID string, p Protection) error
	// DeleteProtection removes the registration, or returns ErrProtectionNotFound.
	DeleteProtection(ctx context.Context, userID, entityKey string) error
	ListProtections(ctx context.Context, userID string) ([]Protection, error)
	// Protectors lists users protecting entityKey for alertType.
	Protectors(ctx context.Context, entityKey, alertType string) ([]string, error)
}

func validAction(action string) bool {
	for _, a := range Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Package risk scores identifiers against crowd-sourced fraud reports.
//
// Every active report on an entity inside the trailing window adds one point;
// Phishing and Identity Theft reports add two more. The total is banded into
// safe (0), suspicious (1..threshold) and high_risk (above threshold).
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
)

// Level is a discrete entity risk band.
type Level string

const (
	LevelSafe       Level = "safe"
	LevelSuspicious Level = "suspicious"
	LevelHighRisk   Level = "high_risk"
)

// Report categories that carry extra weight.
const (
	CategoryPhishing      = "Phishing"
	CategoryIdentityTheft = "Identity Theft"
)

// Defaults for the scoring engine.
const (
	DefaultWindow        = 30 * 24 * time.Hour
	DefaultHighThreshold = 5
	DefaultLookupTimeout = 3 * time.Second
	DefaultLookupLimit   = 1000
)

var (
	ErrStoreUnavailable = fmt.Errorf("risk: report store unavailable: %w", faults.ErrTransientStore)
	ErrEntityType       = fmt.Errorf("risk: unknown entity type: %w", faults.ErrValidation)
)

// Report is a community fraud report as read from the report store.
// The engine never mutates reports.
type Report struct {
	TargetEntity string    `json:"targetEntity"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"createdAt"`
	IsActive     bool      `json:"isActive"`
}

// Result is the outcome of a risk check. Results are not persisted.
type Result struct {
	TargetEntity string      `json:"targetEntity"`
	EntityType   entity.Type `json:"entityType"`
	Score        int         `json:"score"`
	RiskLevel    Level       `json:"riskLevel"`
	TotalReports int         `json:"totalReports"`
	TopCategory  string      `json:"topCategory,omitempty"`
	CheckedAt    time.Time   `json:"checkedAt"`
	Degraded     bool        `json:"degraded,omitempty"`
}

// ReportStore finds reports for a normalized entity. Implementations match
// the key case-insensitively as a literal substring of the stored target.
type ReportStore interface {
	FindActiveReports(ctx context.Context, key string, since time.Time, limit int) ([]Report, error)
}

// AlertTrigger is told about high-risk results for a known user. It is
// called on its own goroutine and must not assume the caller waits.
type AlertTrigger interface {
	ThreatDetected(ctx context.Context, userID string, result *Result)
}

package risk

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/metrics"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/traces"
)

// Engine scores entities from report-store lookups.
type Engine struct {
	store         ReportStore
	trigger       AlertTrigger
	window        time.Duration
	highThreshold int
	lookupTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewEngine creates a risk scoring engine backed by the given report store.
func NewEngine(store ReportStore, logger *slog.Logger) *Engine {
	return &Engine{
		store:         store,
		window:        DefaultWindow,
		highThreshold: DefaultHighThreshold,
		lookupTimeout: DefaultLookupTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// WithTrigger sets the alert trigger fired for high-risk results.
func (e *Engine) WithTrigger(t AlertTrigger) *Engine {
	e.trigger = t
	return e
}

// WithWindow overrides the trailing report window.
func (e *Engine) WithWindow(d time.Duration) *Engine {
	e.window = d
	return e
}

// WithHighThreshold overrides the score above which an entity is high risk.
func (e *Engine) WithHighThreshold(n int) *Engine {
	e.highThreshold = n
	return e
}

// WithLookupTimeout bounds each report-store lookup.
func (e *Engine) WithLookupTimeout(d time.Duration) *Engine {
	e.lookupTimeout = d
	return e
}

// WithNow overrides the clock. Used by tests.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Score computes a result for key from reports. Inactive reports and reports
// outside the window are ignored even if the store returned them.
func (e *Engine) Score(key string, reports []Report) *Result {
	now := e.now()
	since := now.Add(-e.window)

	score, matched := 0, 0
	categories := make(map[string]int)
	for _, r := range reports {
		if !r.IsActive || r.CreatedAt.Before(since) || r.CreatedAt.After(now) {
			continue
		}
		matched++
		score++
		if r.Category == CategoryPhishing || r.Category == CategoryIdentityTheft {
			score += 2
		}
		if r.Category != "" {
			categories[r.Category]++
		}
	}

	return &Result{
		TargetEntity: key,
		EntityType:   entity.DetectType(key),
		Score:        score,
		RiskLevel:    e.Band(score),
		TotalReports: matched,
		TopCategory:  topCategory(categories),
		CheckedAt:    now,
	}
}

// Band maps a score to a level.
func (e *Engine) Band(score int) Level {
	switch {
	case score <= 0:
		return LevelSafe
	case score <= e.highThreshold:
		return LevelSuspicious
	default:
		return LevelHighRisk
	}
}

// Check normalizes raw, looks up its reports and scores them. A store failure
// never fails the check: the result is scored from zero reports and marked
// Degraded. For a known userID a high-risk result fires the alert trigger
// asynchronously. Only malformed input returns an error.
func (e *Engine) Check(ctx context.Context, raw, typeHint, userID string) (*Result, error) {
	if err := entity.Validate(raw); err != nil {
		return nil, err
	}
	var hinted entity.Type
	if typeHint != "" {
		t, ok := entity.ParseType(typeHint)
		if !ok {
			return nil, ErrEntityType
		}
		hinted = t
	}
	key := entity.Normalize(raw)

	ctx, span := traces.StartSpan(ctx, "risk.Check", traces.EntityType(string(entity.DetectType(key))))
	defer span.End()

	reports, err := e.lookup(ctx, key)
	var result *Result
	if err != nil {
		metrics.RiskStoreDegradedTotal.Inc()
		logging.L(ctx).Warn("report store lookup failed, scoring without reports", "error", err)
		result = e.Score(key, nil)
		result.Degraded = true
	} else {
		result = e.Score(key, reports)
	}
	if hinted != "" && hinted != entity.TypeUnknown {
		result.EntityType = hinted
	}

	span.SetAttributes(traces.RiskLevel(string(result.RiskLevel)))
	metrics.RiskChecksTotal.WithLabelValues(string(result.RiskLevel)).Inc()

	if result.RiskLevel == LevelHighRisk && userID != "" && e.trigger != nil {
		snapshot := *result
		logger := logging.L(ctx)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in alert trigger", "panic", r)
				}
			}()
			e.trigger.ThreatDetected(logging.WithLogger(context.Background(), logger), userID, &snapshot)
		}()
	}

	return result, nil
}

func (e *Engine) lookup(ctx context.Context, key string) ([]Report, error) {
	if e.store == nil {
		return nil, ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()
	return e.store.FindActiveReports(ctx, key, e.now().Add(-e.window), DefaultLookupLimit)
}

// topCategory returns the most frequent category, breaking ties alphabetically.
func topCategory(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	best := names[0]
	for _, name := range names[1:] {
		if counts[name] > counts[best] {
			best = name
		}
	}
	return best
}

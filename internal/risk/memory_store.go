package risk

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
)

// MemoryStore is an in-memory report store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []Report
}

// NewMemoryStore creates an in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add records a report. The target is stored in normalized form.
func (s *MemoryStore) Add(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.TargetEntity = entity.Normalize(r.TargetEntity)
	s.reports = append(s.reports, r)
}

func (s *MemoryStore) FindActiveReports(ctx context.Context, key string, since time.Time, limit int) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(key)
	var result []Report
	for _, r := range s.reports {
		if !r.IsActive || r.CreatedAt.Before(since) {
			continue
		}
		if !strings.Contains(strings.ToLower(r.TargetEntity), needle) {
			continue
		}
		result = append(result, r)
	}

	// Most recent first, up to limit
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ ReportStore = (*MemoryStore)(nil)

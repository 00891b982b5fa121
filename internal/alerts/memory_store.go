package alerts

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Pending and history lists are capped
// per user; the oldest entry is evicted first.
type MemoryStore struct {
	mu          sync.RWMutex
	pendingCap  int
	historyCap  int
	pending     map[string][]Alert // oldest first
	history     map[string][]Alert // oldest first
	protections map[string]map[string]Protection
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store with the given caps. Non-positive caps use
// the defaults.
func NewMemoryStore(pendingCap, historyCap int) *MemoryStore {
	if pendingCap <= 0 {
		pendingCap = DefaultPendingCap
	}
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &MemoryStore{
		pendingCap:  pendingCap,
		historyCap:  historyCap,
		pending:     make(map[string][]Alert),
		history:     make(map[string][]Alert),
		protections: make(map[string]map[string]Protection),
	}
}

func appendCapped(list []Alert, a Alert, limit int) []Alert {
	list = append(list, a)
	if over := len(list) - limit; over > 0 {
		list = append([]Alert(nil), list[over:]...)
	}
	return list
}

func newestFirst(list []Alert, limit int) []Alert {
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]Alert, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out
}

func (m *MemoryStore) AppendPending(_ context.Context, userID string, a Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[userID] = appendCapped(m.pending[userID], a, m.pendingCap)
	return nil
}

func (m *MemoryStore) ListPending(_ context.Context, userID string) ([]Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.pending[userID], 0), nil
}

func (m *MemoryStore) RemovePending(_ context.Context, userID, alertID string) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.pending[userID]
	for i, a := range list {
		if a.ID != alertID {
			continue
		}
		rest := append(append([]Alert(nil), list[:i]...), list[i+1:]...)
		if len(rest) == 0 {
			delete(m.pending, userID)
		} else {
			m.pending[userID] = rest
		}
		return a, nil
	}
	return Alert{}, ErrAlertNotFound
}

func (m *MemoryStore) AppendHistory(_ context.Context, userID string, a Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[userID] = appendCapped(m.history[userID], a, m.historyCap)
	return nil
}

func (m *MemoryStore) ListHistory(_ context.Context, userID string, limit int) ([]Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.history[userID], limit), nil
}

func (m *MemoryStore) PutProtection(_ context.Context, userID string, p Protection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	users, ok := m.protections[p.Entity]
	if !ok {
		users = make(map[string]Protection)
		m.protections[p.Entity] = users
	}
	p.AlertTypes = append([]string(nil), p.AlertTypes...)
	users[userID] = p
	return nil
}

func (m *MemoryStore) DeleteProtection(_ context.Context, userID, entityKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	users, ok := m.protections[entityKey]
	if !ok {
		return ErrProtectionNotFound
	}
	if _, ok := users[userID]; !ok {
		return ErrProtectionNotFound
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(m.protections, entityKey)
	}
	return nil
}

func (m *MemoryStore) ListProtections(_ context.Context, userID string) ([]Protection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Protection
	for _, users := range m.protections {
		if p, ok := users[userID]; ok {
			p.AlertTypes = append([]string(nil), p.AlertTypes...)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Protectors(_ context.Context, entityKey, alertType string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for userID, p := range m.protections[entityKey] {
		if p.Covers(alertType) {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out, nil
}

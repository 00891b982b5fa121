package otc

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec     Record
	purgeAt time.Time // zero means no TTL
}

// MemoryStore is an in-memory OTC store for single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory OTC store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithNow overrides the clock used for TTL purging. Used by tests.
func (m *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || m.purged(e, m.now()) {
		return nil, ErrNotFound
	}
	cp := e.rec
	if e.rec.VerifiedAt != nil {
		t := *e.rec.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp, nil
}

func (m *MemoryStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{rec: *rec}
	if ttl > 0 {
		e.purgeAt = m.now().Add(ttl)
	}
	m.entries[rec.Key()] = e
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time, verifiedGrace time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if m.purged(e, now) || e.rec.Sweepable(now, verifiedGrace) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records, including ones awaiting purge.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) purged(e memoryEntry, now time.Time) bool {
	return !e.purgeAt.IsZero() && !now.Before(e.purgeAt)
}

var _ Store = (*MemoryStore)(nil)

package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rankshop/rankshop/internal/core"
)

// MemoryRateLimitStore keeps rate limit entries in process memory.
type MemoryRateLimitStore struct {
	mu      sync.RWMutex
	entries map[string]core.RateLimitEntry
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{entries: make(map[string]core.RateLimitEntry)}
}

func (m *MemoryRateLimitStore) GetRateLimit(_ context.Context, identifier string) (*core.RateLimitEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[identifier]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryRateLimitStore) SetRateLimit(_ context.Context, entry *core.RateLimitEntry) error {
	if entry == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil {
		m.entries = make(map[string]core.RateLimitEntry)
	}
	m.entries[entry.Identifier] = *entry
	return nil
}

func (m *MemoryRateLimitStore) DeleteRateLimit(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, identifier)
	return nil
}

func (m *MemoryRateLimitStore) SweepRateLimits(_ context.Context, cutoff, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if !entry.LastSeen.Before(cutoff) {
			continue
		}
		if entry.Blocked && entry.BlockedUntil.After(now) {
			continue
		}
		delete(m.entries, key)
		removed++
	}
	return removed, nil
}

// Entries returns a snapshot ordered by identifier.
func (m *MemoryRateLimitStore) Entries() []core.RateLimitEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.RateLimitEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ourvoice/mgnrega-engine/metrics"
)

// =============================================================================
// MEMORY CACHE - process-local fallback
// =============================================================================

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process cache. Expired entries are removed when read;
// there is no background sweep. Concurrent writers to one key resolve
// last-write-wins.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns a live entry. An expired entry is deleted and reported as a miss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		metrics.ObserveCache(BackendMemory, false)
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		metrics.ObserveCache(BackendMemory, false)
		return nil, false
	}
	metrics.ObserveCache(BackendMemory, true)
	return e.value, true
}

// Set stores a copy of value until now+ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: v, expiresAt: m.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
